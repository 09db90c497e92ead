package user_test

import (
	"context"
	"log"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/email/dummy"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database/dummy"
	"github.com/trezcool/shule/tests"
)

var codeRegex = regexp.MustCompile(`\b(\d{6})\b`)

func newTestService(t *testing.T) (user.Service, user.Repository) {
	t.Helper()
	conf := &core.Config{
		AppName:                   "Shule",
		TestMode:                  true,
		PasswordResetTimeoutDelta: 15 * time.Minute,
	}
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	repo := dummydb.NewUserRepository(db)
	dummymail.Reset()
	logger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	svc := user.NewService(conf, repo, dummymail.NewService(conf), logger)
	return svc, repo
}

func lastSentCode(t *testing.T) string {
	t.Helper()
	if len(dummymail.SentMessages) == 0 {
		t.Fatal("no email was sent")
	}
	msg := dummymail.SentMessages[len(dummymail.SentMessages)-1]
	m := codeRegex.FindStringSubmatch(msg.TextContent)
	if m == nil {
		t.Fatalf("no reset code found in email: %q", msg.TextContent)
	}
	return m[1]
}

func Test_service_Register(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	nu := user.NewUser{
		FirstName:   "Jane",
		LastName:    "Doe",
		Email:       "jane@test.cd",
		Password:    "s3cr3t pwd",
		AcceptTerms: true,
		Role:        user.RoleStudent,
	}
	usr, err := svc.Register(ctx, nu)
	if err != nil {
		t.Fatalf("Register(): %v", err)
	}
	if usr.ID == "" {
		t.Error("Register() returned empty ID")
	}
	if err := usr.CheckPassword("s3cr3t pwd"); err != nil {
		t.Errorf("CheckPassword() failed on registered user: %v", err)
	}
	if err := usr.CheckPassword("wrong pwd"); err == nil {
		t.Error("CheckPassword() accepted a wrong password")
	}
	if len(dummymail.SentMessages) != 1 {
		t.Errorf("welcome emails sent = %d, want 1", len(dummymail.SentMessages))
	}

	// same email, same role: rejected
	if _, err := svc.Register(ctx, nu); err != user.ErrEmailExists {
		t.Errorf("Register() error = %v, want %v", err, user.ErrEmailExists)
	}

	// same email, different role: its own collection
	nu.Role = user.RoleStaff
	nu.Specialization = "Mathematics"
	if _, err := svc.Register(ctx, nu); err != nil {
		t.Errorf("Register() as staff error = %v", err)
	}
}

func Test_service_Authenticate(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, repo, "Jane", "Doe", "jane@test.cd", "s3cr3t pwd", user.RoleStudent)

	tests := []struct {
		name    string
		role    user.Role
		email   string
		pwd     string
		wantErr error
	}{
		{name: "ok", role: user.RoleStudent, email: "jane@test.cd", pwd: "s3cr3t pwd"},
		{name: "email is case-insensitive", role: user.RoleStudent, email: "JANE@Test.CD", pwd: "s3cr3t pwd"},
		{name: "wrong password", role: user.RoleStudent, email: "jane@test.cd", pwd: "nope", wantErr: user.ErrInvalidCredentials},
		{name: "unknown email", role: user.RoleStudent, email: "who@test.cd", pwd: "s3cr3t pwd", wantErr: user.ErrInvalidCredentials},
		{name: "wrong collection", role: user.RoleStaff, email: "jane@test.cd", pwd: "s3cr3t pwd", wantErr: user.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := svc.Authenticate(ctx, tt.role, tt.email, tt.pwd)
			if err != tt.wantErr {
				t.Errorf("Authenticate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && usr.ID != student.ID {
				t.Errorf("Authenticate() ID = %v, want %v", usr.ID, student.ID)
			}
		})
	}
}

func Test_service_PasswordResetFlow(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	testutil.CreateUser(t, repo, "Jane", "Doe", "jane@test.cd", "0ld pwd!", user.RoleStudent)

	// unknown email reported to the caller, never to the client
	if err := svc.RequestPasswordReset(ctx, user.RoleStudent, "who@test.cd"); err != user.ErrNotFound {
		t.Errorf("RequestPasswordReset() error = %v, want %v", err, user.ErrNotFound)
	}

	if err := svc.RequestPasswordReset(ctx, user.RoleStudent, "jane@test.cd"); err != nil {
		t.Fatalf("RequestPasswordReset(): %v", err)
	}
	code := lastSentCode(t)

	// verification is side-effect free and repeatable
	for i := 0; i < 2; i++ {
		valid, err := svc.VerifyResetCode(ctx, user.RoleStudent, "jane@test.cd", code)
		if err != nil {
			t.Fatalf("VerifyResetCode(): %v", err)
		}
		if !valid {
			t.Error("VerifyResetCode() = false, want true")
		}
	}
	if valid, _ := svc.VerifyResetCode(ctx, user.RoleStudent, "jane@test.cd", "000000"); valid && code != "000000" {
		t.Error("VerifyResetCode() accepted a wrong code")
	}
	if valid, _ := svc.VerifyResetCode(ctx, user.RoleStudent, "who@test.cd", code); valid {
		t.Error("VerifyResetCode() accepted an unknown email")
	}

	rp := user.ResetUserPassword{
		Email:       "jane@test.cd",
		ResetCode:   code,
		NewPassword: "n3w pwd yo!",
		UserType:    user.RoleStudent,
	}
	if err := svc.ResetPassword(ctx, rp); err != nil {
		t.Fatalf("ResetPassword(): %v", err)
	}

	// old password out, new password in
	if _, err := svc.Authenticate(ctx, user.RoleStudent, "jane@test.cd", "0ld pwd!"); err != user.ErrInvalidCredentials {
		t.Errorf("Authenticate() with old password error = %v, want %v", err, user.ErrInvalidCredentials)
	}
	if _, err := svc.Authenticate(ctx, user.RoleStudent, "jane@test.cd", "n3w pwd yo!"); err != nil {
		t.Errorf("Authenticate() with new password error = %v", err)
	}

	// the code is consumed
	if err := svc.ResetPassword(ctx, rp); err != user.ErrInvalidResetCode {
		t.Errorf("ResetPassword() reuse error = %v, want %v", err, user.ErrInvalidResetCode)
	}
}

func Test_service_ResetPassword_badCode(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	testutil.CreateUser(t, repo, "Jane", "Doe", "jane@test.cd", "s3cr3t pwd", user.RoleStudent)

	rp := user.ResetUserPassword{
		Email:       "jane@test.cd",
		ResetCode:   "123456",
		NewPassword: "n3w pwd yo!",
		UserType:    user.RoleStudent,
	}
	if err := svc.ResetPassword(ctx, rp); err != user.ErrInvalidResetCode {
		t.Errorf("ResetPassword() error = %v, want %v", err, user.ErrInvalidResetCode)
	}

	rp.Email = "who@test.cd"
	if err := svc.ResetPassword(ctx, rp); err != user.ErrInvalidResetCode {
		t.Errorf("ResetPassword() unknown email error = %v, want %v", err, user.ErrInvalidResetCode)
	}
}
