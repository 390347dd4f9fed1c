package main

import "github.com/report-zone/mfe-demo-sub000/cmd/panelctl/cmd"

func main() {
	cmd.Execute()
}
