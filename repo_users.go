package identity

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the account repository
type Users interface {
	repository.Repository[*User]

	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	GetWithRelations(ctx context.Context, id uuid.UUID) (*User, error)
	GetWithRelationsTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*User, error)
	GetByGoogleIDTx(ctx context.Context, tx bun.IDB, googleID string) (*User, error)
	GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, tokenID uuid.UUID) (*User, error)
	GetByResetTokenTx(ctx context.Context, tx bun.IDB, tokenID uuid.UUID) (*User, error)

	ExistsByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error)
	ExistsByUsernameTx(ctx context.Context, tx bun.IDB, username string) (bool, error)

	RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	DeleteAbandonedSignupsTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error)
	ClearExpiredResetRequestsTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error)

	Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error)
	ListPage(ctx context.Context, page, limit int, orderBy, order string) ([]*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

// GetByIdentifierTx resolves an account by username or email, whichever the
// identifier looks like, with roles and picture loaded.
func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	identifier = strings.TrimSpace(identifier)

	column := "username"
	if _, err := mail.ParseAddress(identifier); err == nil {
		column = "email"
	}

	return a.getOneTx(ctx, tx, "?TableAlias."+column+" = ?", identifier, criteria...)
}

func (a *users) GetWithRelations(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.GetWithRelationsTx(ctx, a.db, id)
}

func (a *users) GetWithRelationsTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	return a.getOneTx(ctx, tx, "?TableAlias.id = ?", id)
}

func (a *users) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error) {
	return a.getOneTx(ctx, tx, "?TableAlias.username = ?", username)
}

func (a *users) GetByGoogleID(ctx context.Context, googleID string) (*User, error) {
	return a.GetByGoogleIDTx(ctx, a.db, googleID)
}

func (a *users) GetByGoogleIDTx(ctx context.Context, tx bun.IDB, googleID string) (*User, error) {
	return a.getOneTx(ctx, tx, "?TableAlias.google_id = ?", googleID)
}

func (a *users) GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, tokenID uuid.UUID) (*User, error) {
	return a.getOneTx(ctx, tx, "?TableAlias.verification_token_id = ?", tokenID)
}

func (a *users) GetByResetTokenTx(ctx context.Context, tx bun.IDB, tokenID uuid.UUID) (*User, error) {
	return a.getOneTx(ctx, tx, "?TableAlias.reset_token_id = ?", tokenID)
}

func (a *users) getOneTx(ctx context.Context, tx bun.IDB, where string, value any, criteria ...repository.SelectCriteria) (*User, error) {
	record := &User{}
	q := tx.NewSelect().
		Model(record).
		Relation("Roles").
		Relation("Picture")

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where(where, value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *users) ExistsByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error) {
	return tx.NewSelect().Model((*User)(nil)).
		Where("?TableAlias.email = ?", email).
		Exists(ctx)
}

func (a *users) ExistsByUsernameTx(ctx context.Context, tx bun.IDB, username string) (bool, error) {
	return tx.NewSelect().Model((*User)(nil)).
		Where("?TableAlias.username = ?", username).
		Exists(ctx)
}

func (a *users) RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	if _, err := tx.NewDelete().Model((*UserRole)(nil)).
		Where("user_id = ?", id).
		Exec(ctx); err != nil {
		return err
	}

	_, err := tx.NewDelete().Model((*User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// DeleteAbandonedSignupsTx removes unverified accounts whose verification
// token has expired. Their join rows go first so the delete cannot orphan
// them; the dangling tokens are swept separately.
func (a *users) DeleteAbandonedSignupsTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error) {
	if _, err := tx.NewDelete().Model((*UserRole)(nil)).
		Where("user_id IN (SELECT id FROM users WHERE is_verified = ? AND verification_token_id IN (SELECT id FROM tokens WHERE expiration_date < ?))", false, now).
		Exec(ctx); err != nil {
		return 0, err
	}

	res, err := tx.NewDelete().Model((*User)(nil)).
		Where("is_verified = ?", false).
		Where("verification_token_id IN (SELECT id FROM tokens WHERE expiration_date < ?)", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// ClearExpiredResetRequestsTx detaches reset tokens whose window elapsed.
// The account itself stays; only the outstanding-request marker is cleared.
func (a *users) ClearExpiredResetRequestsTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error) {
	res, err := tx.NewUpdate().Model((*User)(nil)).
		Set("reset_token_id = NULL").
		Where("reset_token_id IN (SELECT id FROM tokens WHERE expiration_date < ?)", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (a *users) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	q := a.db.NewSelect().Model((*User)(nil))
	for _, c := range criteria {
		q.Apply(c)
	}
	return q.Count(ctx)
}

func (a *users) ListPage(ctx context.Context, page, limit int, orderBy, order string) ([]*User, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	switch orderBy {
	case "username", "email", "created_at", "updated_at":
	default:
		orderBy = "created_at"
	}
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	var records []*User
	err := a.db.NewSelect().
		Model(&records).
		Relation("Roles").
		Relation("Picture").
		OrderExpr("?TableAlias."+orderBy+" "+order).
		Limit(limit).
		Offset((page - 1) * limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}
