package echoapi

import (
	"testing"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

func TestGenerateVerifyToken(t *testing.T) {
	configureAuth(&core.Config{
		AppName:   "Shule",
		SecretKey: "secret",
		Server:    core.ServerConfig{JWTExpirationDelta: 10 * time.Minute},
	})

	usr := user.User{ID: "0b79bab5-0e1c-4b91-9a0c-1b2f4b3d4e5f", Role: user.RoleStudent}

	validToken, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	// issue a token far enough in the past that it has expired
	nowFunc = func() time.Time { return time.Now().Add(-1 * time.Hour) }
	expiredToken, err := GenerateToken(GetUserClaims(usr))
	nowFunc = time.Now // reset
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	// a token signed with another key
	secretKey = []byte("other secret")
	forgedToken, err := GenerateToken(GetUserClaims(usr))
	secretKey = []byte("secret") // reset
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty token", wantErr: errTokenFailed},
		{name: "garbage token", token: "lol.lol.lol", wantErr: errTokenFailed},
		{name: "expired token", token: expiredToken, wantErr: errTokenFailed},
		{name: "forged token", token: forgedToken, wantErr: errTokenFailed},
		{name: "valid token", token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := verifyToken(tt.token)
			if err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				if claims.Subject != usr.ID {
					t.Errorf("verifyToken() subject = %v, want %v", claims.Subject, usr.ID)
				}
				if claims.Role != usr.Role {
					t.Errorf("verifyToken() role = %v, want %v", claims.Role, usr.Role)
				}
			}
		})
	}
}

func TestRoleGates(t *testing.T) {
	// an unknown or empty role never passes any gate
	noRole := user.Role("")

	gates := []struct {
		name    string
		allowed func(user.Role) bool
		want    map[user.Role]bool
	}{
		{
			name:    "admins only",
			allowed: user.Role.IsAdmin,
			want: map[user.Role]bool{
				user.RoleStudent:    false,
				user.RoleStaff:      false,
				user.RoleAdmin:      true,
				user.RoleSuperAdmin: true,
			},
		},
		{
			name:    "staff only",
			allowed: user.Role.IsStaff,
			want: map[user.Role]bool{
				user.RoleStudent:    false,
				user.RoleStaff:      true,
				user.RoleAdmin:      false,
				user.RoleSuperAdmin: false,
			},
		},
		{
			name:    "students only",
			allowed: user.Role.IsStudent,
			want: map[user.Role]bool{
				user.RoleStudent:    true,
				user.RoleStaff:      false,
				user.RoleAdmin:      false,
				user.RoleSuperAdmin: false,
			},
		},
		{
			name:    "staff or admins",
			allowed: func(r user.Role) bool { return r.IsStaff() || r.IsAdmin() },
			want: map[user.Role]bool{
				user.RoleStudent:    false,
				user.RoleStaff:      true,
				user.RoleAdmin:      true,
				user.RoleSuperAdmin: true,
			},
		},
	}
	for _, gate := range gates {
		gate.want[noRole] = false

		t.Run(gate.name, func(t *testing.T) {
			for role, want := range gate.want {
				if got := gate.allowed(role); got != want {
					t.Errorf("%s: allowed(%s) = %v, want %v", gate.name, role, got, want)
				}
			}
		})
	}
}
