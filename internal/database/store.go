package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	UserCollectionName         = "users"
	LoginHistoryCollectionName = "login_history"
	FileTrackingCollectionName = "file_tracking"
)

var ErrEmptyUsername = errors.New("username is empty")

// LoginStatus is the outcome of a login attempt.
type LoginStatus int

const (
	ClientAlreadyConnected LoginStatus = iota
	AlreadyLoggedIn
	WrongPassword
	AddedNewUser
	LoggedIn
)

func (s LoginStatus) String() string {
	switch s {
	case ClientAlreadyConnected:
		return "client already connected"
	case AlreadyLoggedIn:
		return "user already logged in"
	case WrongPassword:
		return "wrong password"
	case AddedNewUser:
		return "added new user"
	case LoggedIn:
		return "logged in"
	default:
		return fmt.Sprintf("LoginStatus(%d)", int(s))
	}
}

// Succeeded reports whether the connection is now logged in.
func (s LoginStatus) Succeeded() bool {
	return s == AddedNewUser || s == LoggedIn
}

// CredentialStore authenticates users and records their activity.
type CredentialStore interface {
	// Login registers unknown users on first use and authenticates known ones.
	Login(ctx context.Context, connID int, username, password string) (LoginStatus, error)
	// Logout ends the login held by connID. Unknown ids are ignored.
	Logout(ctx context.Context, connID int) error
	TrackFileUpload(ctx context.Context, username, filename, destination string) error
	Report(ctx context.Context) (*Report, error)
}

type LoginRecord struct {
	LoginTime  time.Time
	LogoutTime *time.Time
}

type FileUpload struct {
	Filename    string
	UploadTime  time.Time
	Destination string
}

type UserReport struct {
	Username     string
	RegisteredAt time.Time
	Logins       []LoginRecord
	Uploads      []FileUpload
}

// Report summarises every registered user, ordered by username.
type Report struct {
	Users []UserReport
}

func (r *Report) String() string {
	const timeLayout = "2006-01-02 15:04:05"
	var b strings.Builder
	b.WriteString("================ Server Report ================\n")
	fmt.Fprintf(&b, "Registered users: %d\n", len(r.Users))
	for _, u := range r.Users {
		fmt.Fprintf(&b, "\nUser: %s\n", u.Username)
		fmt.Fprintf(&b, "  Registered: %s\n", u.RegisteredAt.Format(timeLayout))
		fmt.Fprintf(&b, "  Login history (%d):\n", len(u.Logins))
		for _, l := range u.Logins {
			logout := "active"
			if l.LogoutTime != nil {
				logout = l.LogoutTime.Format(timeLayout)
			}
			fmt.Fprintf(&b, "    login %s, logout %s\n", l.LoginTime.Format(timeLayout), logout)
		}
		fmt.Fprintf(&b, "  Uploaded files (%d):\n", len(u.Uploads))
		for _, f := range u.Uploads {
			fmt.Fprintf(&b, "    %s at %s to %s\n", f.Filename, f.UploadTime.Format(timeLayout), f.Destination)
		}
	}
	b.WriteString("===============================================\n")
	return b.String()
}

// ReportCallback prints the store report on shutdown.
type ReportCallback struct {
	store CredentialStore
	print func(string)
}

func NewReportCallback(store CredentialStore, print func(string)) *ReportCallback {
	return &ReportCallback{store: store, print: print}
}

func (rc *ReportCallback) Invoke(ctx context.Context) error {
	report, err := rc.store.Report(ctx)
	if err != nil {
		return fmt.Errorf("unable to build report: %w", err)
	}
	rc.print(report.String())
	return nil
}
