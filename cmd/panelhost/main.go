package main

import "github.com/report-zone/mfe-demo-sub000/cmd/panelhost/cmd"

func main() {
	cmd.Execute()
}
