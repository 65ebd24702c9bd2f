package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

type userDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	PasswordHash string             `bson:"password_hash"`
	RegisteredAt time.Time          `bson:"registration_date"`
}

type loginDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Username   string             `bson:"username"`
	LoginTime  time.Time          `bson:"login_time"`
	LogoutTime *time.Time         `bson:"logout_time,omitempty"`
}

type fileDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Username    string             `bson:"username"`
	Filename    string             `bson:"filename"`
	UploadTime  time.Time          `bson:"upload_time"`
	Destination string             `bson:"destination"`
}

type mongoSession struct {
	username  string
	historyID primitive.ObjectID
}

type MongoOptions struct {
	BcryptCost       int
	CacheSize        int
	CacheTTL         time.Duration
	OperationTimeout time.Duration
}

// MongoStore persists users, login history and uploads in MongoDB. The set of
// connections currently logged in is kept in memory since it does not outlive the process.
type MongoStore struct {
	db        *mongo.Database
	users     *mongo.Collection
	history   *mongo.Collection
	files     *mongo.Collection
	userCache *expirable.LRU[string, *userDocument]
	cost      int
	timeout   time.Duration

	mu     sync.Mutex
	active map[int]*mongoSession
	now    func() time.Time
}

func NewMongoStore(db *mongo.Database, opts MongoOptions) *MongoStore {
	if opts.BcryptCost < bcrypt.MinCost || opts.BcryptCost > bcrypt.MaxCost {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 5 * time.Second
	}
	return &MongoStore{
		db:        db,
		users:     db.Collection(UserCollectionName),
		history:   db.Collection(LoginHistoryCollectionName),
		files:     db.Collection(FileTrackingCollectionName),
		userCache: expirable.NewLRU[string, *userDocument](opts.CacheSize, nil, opts.CacheTTL),
		cost:      opts.BcryptCost,
		timeout:   opts.OperationTimeout,
		active:    make(map[int]*mongoSession),
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func wrapErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("unique key conflicts: %w", err)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("document does not exist: %w", err)
	}
	return fmt.Errorf("database operation failed: %w", err)
}

// reserve marks connID as logging in as username, or reports why it cannot.
func (ms *MongoStore) reserve(connID int, username string) (LoginStatus, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, ok := ms.active[connID]; ok {
		return ClientAlreadyConnected, false
	}
	for _, s := range ms.active {
		if s.username == username {
			return AlreadyLoggedIn, false
		}
	}
	ms.active[connID] = &mongoSession{username: username}
	return 0, true
}

func (ms *MongoStore) unreserve(connID int) {
	ms.mu.Lock()
	delete(ms.active, connID)
	ms.mu.Unlock()
}

func (ms *MongoStore) findUser(ctx context.Context, username string) (*userDocument, error) {
	if user, ok := ms.userCache.Get(username); ok {
		return user, nil
	}

	var user userDocument
	startTime := time.Now()
	err := ms.users.FindOne(ctx, bson.D{{Key: "username", Value: username}}).Decode(&user)
	logger.DebugF("user query cost: %v", time.Since(startTime))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, wrapErr(err)
	}
	ms.userCache.Add(username, &user)
	return &user, nil
}

func (ms *MongoStore) Login(ctx context.Context, connID int, username, password string) (LoginStatus, error) {
	if username == "" {
		return 0, ErrEmptyUsername
	}
	if status, ok := ms.reserve(connID, username); !ok {
		return status, nil
	}
	status, historyID, err := ms.login(ctx, username, password)
	if err != nil || !status.Succeeded() {
		ms.unreserve(connID)
		return status, err
	}

	ms.mu.Lock()
	ms.active[connID].historyID = historyID
	ms.mu.Unlock()
	return status, nil
}

func (ms *MongoStore) login(ctx context.Context, username, password string) (LoginStatus, primitive.ObjectID, error) {
	ctx, cancel := context.WithTimeout(ctx, ms.timeout)
	defer cancel()

	user, err := ms.findUser(ctx, username)
	if err != nil {
		return 0, primitive.NilObjectID, err
	}

	status := LoggedIn
	if user == nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), ms.cost)
		if err != nil {
			return 0, primitive.NilObjectID, fmt.Errorf("unable to hash password: %w", err)
		}
		user = &userDocument{Username: username, PasswordHash: string(hash), RegisteredAt: ms.now()}
		result, err := ms.users.InsertOne(ctx, user)
		if err != nil {
			return 0, primitive.NilObjectID, wrapErr(err)
		}
		if id, ok := result.InsertedID.(primitive.ObjectID); ok {
			user.ID = id
		}
		ms.userCache.Add(username, user)
		status = AddedNewUser
		logger.InfoF("Registered new user %s", username)
	} else if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return WrongPassword, primitive.NilObjectID, nil
		}
		return 0, primitive.NilObjectID, fmt.Errorf("unable to verify password: %w", err)
	}

	result, err := ms.history.InsertOne(ctx, &loginDocument{Username: username, LoginTime: ms.now()})
	if err != nil {
		return 0, primitive.NilObjectID, wrapErr(err)
	}
	historyID, _ := result.InsertedID.(primitive.ObjectID)
	return status, historyID, nil
}

func (ms *MongoStore) Logout(ctx context.Context, connID int) error {
	ms.mu.Lock()
	session, ok := ms.active[connID]
	delete(ms.active, connID)
	ms.mu.Unlock()
	if !ok || session.historyID.IsZero() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, ms.timeout)
	defer cancel()

	update := bson.D{{Key: "$set", Value: bson.D{{Key: "logout_time", Value: ms.now()}}}}
	result, err := ms.history.UpdateByID(ctx, session.historyID, update)
	if err != nil {
		return wrapErr(err)
	}
	logger.DebugF("Logout recorded: user=%s, matched=%d, modified=%d", session.username, result.MatchedCount, result.ModifiedCount)
	return nil
}

func (ms *MongoStore) TrackFileUpload(ctx context.Context, username, filename, destination string) error {
	if username == "" {
		return ErrEmptyUsername
	}
	ctx, cancel := context.WithTimeout(ctx, ms.timeout)
	defer cancel()

	doc := &fileDocument{Username: username, Filename: filename, UploadTime: ms.now(), Destination: destination}
	if _, err := ms.files.InsertOne(ctx, doc); err != nil {
		return wrapErr(err)
	}
	logger.DebugF("File upload tracked: user=%s, file=%s, destination=%s", username, filename, destination)
	return nil
}

func (ms *MongoStore) Report(ctx context.Context) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, ms.timeout)
	defer cancel()

	var users []userDocument
	if err := findAll(ctx, ms.users, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}), &users); err != nil {
		return nil, err
	}
	var logins []loginDocument
	if err := findAll(ctx, ms.history, options.Find().SetSort(bson.D{{Key: "login_time", Value: 1}}), &logins); err != nil {
		return nil, err
	}
	var files []fileDocument
	if err := findAll(ctx, ms.files, options.Find().SetSort(bson.D{{Key: "upload_time", Value: 1}}), &files); err != nil {
		return nil, err
	}

	report := &Report{Users: make([]UserReport, 0, len(users))}
	index := make(map[string]int, len(users))
	for _, u := range users {
		index[u.Username] = len(report.Users)
		report.Users = append(report.Users, UserReport{Username: u.Username, RegisteredAt: u.RegisteredAt})
	}
	for _, l := range logins {
		if i, ok := index[l.Username]; ok {
			report.Users[i].Logins = append(report.Users[i].Logins, LoginRecord{LoginTime: l.LoginTime, LogoutTime: l.LogoutTime})
		}
	}
	for _, f := range files {
		if i, ok := index[f.Username]; ok {
			report.Users[i].Uploads = append(report.Users[i].Uploads, FileUpload{Filename: f.Filename, UploadTime: f.UploadTime, Destination: f.Destination})
		}
	}
	return report, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, opts *options.FindOptions, out *[]T) error {
	cursor, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return wrapErr(err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return wrapErr(err)
	}
	return nil
}
