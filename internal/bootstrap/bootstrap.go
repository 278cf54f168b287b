// Package bootstrap provisions a fresh MongoDB instance for the marketplace:
// an administrative account with the root role and the application database
// with its initial, empty collections. Every step is idempotent.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
)

// AdminDatabase is where the administrative account lives.
const AdminDatabase = "admin"

// RootRole grants unrestricted privileges.
const RootRole = "root"

var (
	ErrMissingUsername = errors.New("bootstrap: root username is empty")
	ErrMissingPassword = errors.New("bootstrap: root password is empty")
	ErrMissingDatabase = errors.New("bootstrap: database name is empty")
	ErrInvalidDatabase = errors.New("bootstrap: invalid database name")
)

// Role is a MongoDB role grant.
type Role struct {
	Role string `bson:"role"`
	DB   string `bson:"db"`
}

// Account is a user to create in a database.
type Account struct {
	Username string
	Password string
	Roles    []Role
}

// Admin is the set of server operations the provisioner needs.
type Admin interface {
	UserExists(ctx context.Context, db, username string) (bool, error)
	CreateUser(ctx context.Context, db string, a Account) error
	CollectionNames(ctx context.Context, db string) ([]string, error)
	CreateCollection(ctx context.Context, db, name string) error
}

// Plan is what the provisioner should make exist.
type Plan struct {
	RootUsername string
	RootPassword string
	Database     string
	Collections  []string
}

// NewPlan returns the default plan: root account plus the bootstrap collections.
func NewPlan(username, password, database string) Plan {
	cols := make([]string, len(models.BootstrapCollections))
	copy(cols, models.BootstrapCollections)
	return Plan{RootUsername: username, RootPassword: password, Database: database, Collections: cols}
}

func (p Plan) validate() error {
	switch {
	case p.RootUsername == "":
		return ErrMissingUsername
	case p.RootPassword == "":
		return ErrMissingPassword
	case p.Database == "":
		return ErrMissingDatabase
	}
	return nil
}

// Report summarises one run.
type Report struct {
	UserCreated         bool
	CreatedCollections  []string
	ExistingCollections []string
}

// Changed reports whether the run modified the server.
func (r Report) Changed() bool { return r.UserCreated || len(r.CreatedCollections) > 0 }

// Provisioner applies a Plan through an Admin.
type Provisioner struct {
	admin Admin
}

func NewProvisioner(a Admin) *Provisioner { return &Provisioner{admin: a} }

// Run creates the root account, then the database collections. It stops at
// the first failing step; nothing is retried.
func (p *Provisioner) Run(ctx context.Context, plan Plan) (Report, error) {
	var rep Report
	if err := plan.validate(); err != nil {
		return rep, err
	}

	created, err := p.EnsureRootUser(ctx, plan.RootUsername, plan.RootPassword)
	if err != nil {
		return rep, err
	}
	rep.UserCreated = created

	db, err := EnsureDatabase(plan.Database)
	if err != nil {
		return rep, err
	}

	made, existing, err := p.EnsureCollections(ctx, db, plan.Collections)
	rep.CreatedCollections = made
	rep.ExistingCollections = existing
	if err != nil {
		return rep, err
	}
	return rep, nil
}

// EnsureRootUser creates the administrative account unless it already exists.
// An existing account is left untouched.
func (p *Provisioner) EnsureRootUser(ctx context.Context, username, password string) (bool, error) {
	exists, err := p.admin.UserExists(ctx, AdminDatabase, username)
	if err != nil {
		return false, fmt.Errorf("look up user %q: %w", username, err)
	}
	if exists {
		logger.Infof("bootstrap: user %q already exists in %s, skipping", username, AdminDatabase)
		return false, nil
	}
	acc := Account{
		Username: username,
		Password: password,
		Roles:    []Role{{Role: RootRole, DB: AdminDatabase}},
	}
	if err := p.admin.CreateUser(ctx, AdminDatabase, acc); err != nil {
		return false, fmt.Errorf("create user %q: %w", username, err)
	}
	logger.Infof("bootstrap: created user %q with role %s@%s", username, RootRole, AdminDatabase)
	return true, nil
}

// EnsureDatabase checks that name is usable as a MongoDB database name and
// returns it. MongoDB creates the database with its first collection.
func EnsureDatabase(name string) (string, error) {
	if name == "" {
		return "", ErrMissingDatabase
	}
	if len(name) > 63 || strings.ContainsAny(name, "/\\. \"$*<>:|?\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDatabase, name)
	}
	return name, nil
}

// EnsureCollections creates the named collections that are missing from db.
func (p *Provisioner) EnsureCollections(ctx context.Context, db string, names []string) (created, existing []string, err error) {
	have, err := p.admin.CollectionNames(ctx, db)
	if err != nil {
		return nil, nil, fmt.Errorf("list collections of %s: %w", db, err)
	}
	present := make(map[string]bool, len(have))
	for _, n := range have {
		present[n] = true
	}
	for _, name := range names {
		if present[name] {
			existing = append(existing, name)
			logger.Infof("bootstrap: collection %s.%s already exists", db, name)
			continue
		}
		if err := p.admin.CreateCollection(ctx, db, name); err != nil {
			return created, existing, fmt.Errorf("create collection %s.%s: %w", db, name, err)
		}
		present[name] = true
		created = append(created, name)
		logger.Infof("bootstrap: created collection %s.%s", db, name)
	}
	return created, existing, nil
}
