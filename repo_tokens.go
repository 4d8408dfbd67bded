package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Tokens stores the ephemeral email verification and password reset tokens
type Tokens interface {
	repository.Repository[*Token]

	GetByContentTx(ctx context.Context, tx bun.IDB, content string) (*Token, error)
	RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	DeleteExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error)
	DeleteOrphanedTx(ctx context.Context, tx bun.IDB) (int64, error)
}

type tokens struct {
	repository.Repository[*Token]
	db *bun.DB
}

var _ Tokens = (*tokens)(nil)

func NewTokensRepository(db *bun.DB) Tokens {
	repo := repository.NewRepository[*Token](db, repository.ModelHandlers[*Token]{
		NewRecord: func() *Token { return &Token{} },
		GetID: func(t *Token) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Token, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "content"
		},
	})

	return &tokens{
		Repository: repo,
		db:         db,
	}
}

func (t *tokens) GetByContentTx(ctx context.Context, tx bun.IDB, content string) (*Token, error) {
	record := &Token{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.content = ?", content).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return record, nil
}

func (t *tokens) RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewDelete().Model((*Token)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (t *tokens) DeleteExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error) {
	res, err := tx.NewDelete().Model((*Token)(nil)).
		Where("expiration_date < ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteOrphanedTx drops tokens no account points at anymore.
func (t *tokens) DeleteOrphanedTx(ctx context.Context, tx bun.IDB) (int64, error) {
	res, err := tx.NewDelete().Model((*Token)(nil)).
		Where("id NOT IN (SELECT verification_token_id FROM users WHERE verification_token_id IS NOT NULL)").
		Where("id NOT IN (SELECT reset_token_id FROM users WHERE reset_token_id IS NOT NULL)").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Blacklist records revoked bearer token IDs until they would have expired
// on their own.
type Blacklist interface {
	Add(ctx context.Context, jti string, expiresAt time.Time) error
	AddTx(ctx context.Context, tx bun.IDB, jti string, expiresAt time.Time) error
	Exists(ctx context.Context, jti string) (bool, error)
	DeleteExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error)
}

type blacklist struct {
	db *bun.DB
}

var _ Blacklist = (*blacklist)(nil)

func NewBlacklistRepository(db *bun.DB) Blacklist {
	return &blacklist{db: db}
}

func (b *blacklist) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	return b.AddTx(ctx, b.db, jti, expiresAt)
}

func (b *blacklist) AddTx(ctx context.Context, tx bun.IDB, jti string, expiresAt time.Time) error {
	entry := &BlacklistEntry{
		ID:        uuid.New(),
		JTI:       jti,
		ExpiresAt: expiresAt,
	}
	// revoking twice is a no-op
	_, err := tx.NewInsert().Model(entry).
		On("CONFLICT (jti) DO NOTHING").
		Exec(ctx)
	return err
}

func (b *blacklist) Exists(ctx context.Context, jti string) (bool, error) {
	return b.db.NewSelect().Model((*BlacklistEntry)(nil)).
		Where("?TableAlias.jti = ?", jti).
		Exists(ctx)
}

func (b *blacklist) DeleteExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error) {
	res, err := tx.NewDelete().Model((*BlacklistEntry)(nil)).
		Where("expires_at < ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Roles holds the fixed role catalog and user role grants.
type Roles interface {
	Seed(ctx context.Context) error
	GetByNameTx(ctx context.Context, tx bun.IDB, name RoleName) (*Role, error)
	AttachTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error
}

type roles struct {
	db *bun.DB
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	return &roles{db: db}
}

// Seed inserts the role catalog, skipping names already present.
func (r *roles) Seed(ctx context.Context) error {
	for _, name := range AllRoles() {
		role := &Role{
			ID:   uuid.New(),
			Name: name,
		}
		if _, err := r.db.NewInsert().Model(role).
			On("CONFLICT (name) DO NOTHING").
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *roles) GetByNameTx(ctx context.Context, tx bun.IDB, name RoleName) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *roles) AttachTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error {
	grant := &UserRole{
		UserID: userID,
		RoleID: roleID,
	}
	_, err := tx.NewInsert().Model(grant).
		On("CONFLICT (user_id, role_id) DO NOTHING").
		Exec(ctx)
	return err
}

// Pictures stores profile picture records.
type Pictures interface {
	repository.Repository[*Picture]

	RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type pictures struct {
	repository.Repository[*Picture]
	db *bun.DB
}

var _ Pictures = (*pictures)(nil)

func NewPicturesRepository(db *bun.DB) Pictures {
	repo := repository.NewRepository[*Picture](db, repository.ModelHandlers[*Picture]{
		NewRecord: func() *Picture { return &Picture{} },
		GetID: func(p *Picture) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Picture, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "url"
		},
	})

	return &pictures{
		Repository: repo,
		db:         db,
	}
}

func (p *pictures) RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewDelete().Model((*Picture)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
