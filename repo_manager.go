package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Tokens() Tokens
	Roles() Roles
	Blacklist() Blacklist
	Pictures() Pictures
}

type mngr struct {
	db        *bun.DB
	users     Users
	tokens    Tokens
	roles     Roles
	blacklist Blacklist
	pictures  Pictures
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	// the m2m join model has to be known to bun before any
	// Relation("Roles") query runs
	db.RegisterModel((*UserRole)(nil))

	return &mngr{
		db:        db,
		users:     NewUsersRepository(db),
		tokens:    NewTokensRepository(db),
		roles:     NewRolesRepository(db),
		blacklist: NewBlacklistRepository(db),
		pictures:  NewPicturesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.tokens == nil {
		return errors.New("repository tokens should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.blacklist == nil {
		return errors.New("repository blacklist should be initialized")
	}

	if m.pictures == nil {
		return errors.New("repository pictures should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Tokens() Tokens {
	return m.tokens
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) Blacklist() Blacklist {
	return m.blacklist
}

func (m mngr) Pictures() Pictures {
	return m.pictures
}
