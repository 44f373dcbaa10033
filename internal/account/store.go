// Package account stores user accounts and issues the bearer tokens that
// bind API calls to a user.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	userKeyPrefix  = "account:"
	emailKeyPrefix = "account_email:"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidSignup      = errors.New("invalid signup")
)

// User is the public view of an account.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// record is what is persisted; the hash never leaves this package.
type record struct {
	User
	PasswordHash []byte `json:"password_hash"`
}

// Signup is a registration request.
type Signup struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Store keeps accounts in Badger, next to prediction history.
type Store struct {
	db   *badger.DB
	now  func() time.Time
	cost int
}

// New wraps an open database.
func New(db *badger.DB) *Store {
	return &Store{db: db, now: time.Now, cost: bcrypt.DefaultCost}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. Emails are unique, case-insensitively.
func (s *Store) Register(ctx context.Context, req Signup) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := getValidator().Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fmt.Errorf("%w: %s failed %s", ErrInvalidSignup, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignup, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	rec := record{
		User: User{
			ID:        uuid.NewString(),
			Name:      req.Name,
			Email:     req.Email,
			CreatedAt: s.now().UTC(),
		},
		PasswordHash: hash,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal account: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		emailKey := []byte(emailKeyPrefix + rec.Email)
		_, err := txn.Get(emailKey)
		if err == nil {
			return ErrEmailTaken
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check email: %w", err)
		}
		if err := txn.Set(emailKey, []byte(rec.ID)); err != nil {
			return fmt.Errorf("set email index: %w", err)
		}
		if err := txn.Set([]byte(userKeyPrefix+rec.ID), data); err != nil {
			return fmt.Errorf("set account: %w", err)
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		// A concurrent signup touched the same email key.
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	return &rec.User, nil
}

// Authenticate returns the account matching email and password.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(emailKeyPrefix + normalizeEmail(email)))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getRecord(txn, string(id), &rec)
	})
	if errors.Is(err, badger.ErrKeyNotFound) || errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &rec.User, nil
}

// Get returns the account with id.
func (s *Store) Get(ctx context.Context, id string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec record
	if err := s.db.View(func(txn *badger.Txn) error {
		return getRecord(txn, id, &rec)
	}); err != nil {
		return nil, err
	}
	return &rec.User, nil
}

func getRecord(txn *badger.Txn, id string, rec *record) error {
	item, err := txn.Get([]byte(userKeyPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, rec)
	})
}
