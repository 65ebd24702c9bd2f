package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/logger"
	"golang.org/x/crypto/bcrypt"
)

type memoryUser struct {
	passwordHash []byte
	registeredAt time.Time
	logins       []LoginRecord
	uploads      []FileUpload
}

type activeLogin struct {
	username string
	index    int
}

// MemoryStore keeps users for the lifetime of the process.
type MemoryStore struct {
	mu     sync.Mutex
	cost   int
	users  map[string]*memoryUser
	active map[int]activeLogin
	now    func() time.Time
}

func NewMemoryStore(bcryptCost int) *MemoryStore {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &MemoryStore{
		cost:   bcryptCost,
		users:  make(map[string]*memoryUser),
		active: make(map[int]activeLogin),
		now:    time.Now,
	}
}

func (ms *MemoryStore) Login(_ context.Context, connID int, username, password string) (LoginStatus, error) {
	if username == "" {
		return 0, ErrEmptyUsername
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.active[connID]; ok {
		return ClientAlreadyConnected, nil
	}
	for _, a := range ms.active {
		if a.username == username {
			return AlreadyLoggedIn, nil
		}
	}

	status := LoggedIn
	user, ok := ms.users[username]
	if !ok {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), ms.cost)
		if err != nil {
			return 0, fmt.Errorf("unable to hash password: %w", err)
		}
		user = &memoryUser{passwordHash: hash, registeredAt: ms.now()}
		ms.users[username] = user
		status = AddedNewUser
		logger.InfoF("Registered new user %s", username)
	} else if err := bcrypt.CompareHashAndPassword(user.passwordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return WrongPassword, nil
		}
		return 0, fmt.Errorf("unable to verify password: %w", err)
	}

	user.logins = append(user.logins, LoginRecord{LoginTime: ms.now()})
	ms.active[connID] = activeLogin{username: username, index: len(user.logins) - 1}
	return status, nil
}

func (ms *MemoryStore) Logout(_ context.Context, connID int) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	a, ok := ms.active[connID]
	if !ok {
		return nil
	}
	delete(ms.active, connID)
	now := ms.now()
	ms.users[a.username].logins[a.index].LogoutTime = &now
	return nil
}

func (ms *MemoryStore) TrackFileUpload(_ context.Context, username, filename, destination string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	user, ok := ms.users[username]
	if !ok {
		return fmt.Errorf("track upload of %s: user %s is not registered", filename, username)
	}
	user.uploads = append(user.uploads, FileUpload{Filename: filename, UploadTime: ms.now(), Destination: destination})
	return nil
}

func (ms *MemoryStore) Report(_ context.Context) (*Report, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	report := &Report{Users: make([]UserReport, 0, len(ms.users))}
	for name, u := range ms.users {
		report.Users = append(report.Users, UserReport{
			Username:     name,
			RegisteredAt: u.registeredAt,
			Logins:       append([]LoginRecord(nil), u.logins...),
			Uploads:      append([]FileUpload(nil), u.uploads...),
		})
	}
	sort.Slice(report.Users, func(i, j int) bool {
		return report.Users[i].Username < report.Users[j].Username
	})
	return report, nil
}
