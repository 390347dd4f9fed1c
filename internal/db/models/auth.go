package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a principal of the local session provider.
// MustRotate forces a credential rotation on the next sign-in.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string     `bun:"id,pk"`
	Username     string     `bun:"username,notnull,unique"`
	Email        string     `bun:"email,notnull,unique"`
	PasswordHash string     `bun:"password_hash,notnull"` // bcrypt hash
	Groups       []string   `bun:"groups,type:jsonb,notnull"`
	MustRotate   bool       `bun:"must_rotate,notnull,default:false"`
	ConfirmedAt  *time.Time `bun:"confirmed_at"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	LastLoginAt  *time.Time `bun:"last_login_at"`
	DisabledAt   *time.Time `bun:"disabled_at"`
}

// Confirmed reports whether the account completed sign-up confirmation.
func (u *User) Confirmed() bool {
	return u != nil && u.ConfirmedAt != nil
}

// Disabled reports whether the account was disabled by an administrator.
func (u *User) Disabled() bool {
	return u != nil && u.DisabledAt != nil
}

// Code purposes.
const (
	CodePurposeSignUp   = "sign_up"
	CodePurposeReset    = "reset_password"
	CodePurposeRotation = "rotation"
)

// VerificationCode is a single-use code (or rotation challenge) bound to a user.
// Only the SHA-256 hash of the code is stored.
type VerificationCode struct {
	bun.BaseModel `bun:"table:verification_codes,alias:vc"`

	ID         string     `bun:"id,pk"`
	UserID     string     `bun:"user_id,notnull"` // FK to users(id)
	Purpose    string     `bun:"purpose,notnull"`
	CodeHash   string     `bun:"code_hash,notnull"`
	ExpiresAt  time.Time  `bun:"expires_at,notnull"`
	ConsumedAt *time.Time `bun:"consumed_at"`
	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

// RevokedJTI tracks signed-out session tokens by their JTI claim.
type RevokedJTI struct {
	bun.BaseModel `bun:"table:revoked_jti,alias:rjti"`

	JTI       string    `bun:"jti,pk"`                                       // jti claim
	Subject   string    `bun:"subject,notnull"`                              // sub claim (user id)
	Exp       time.Time `bun:"exp,notnull"`                                  // token expiry, for cleanup
	RevokedAt time.Time `bun:"revoked_at,notnull,default:current_timestamp"` // when the token was revoked
}
