package identity

import (
	"context"
	"io"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-identity/blob"
)

// UserPage is one page of accounts.
type UserPage struct {
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
	Users []*User `json:"users"`
}

// ListUsersOptions controls pagination and ordering of FindAll.
type ListUsersOptions struct {
	Page    int    `json:"page"`
	Limit   int    `json:"limit"`
	OrderBy string `json:"order_by"`
	Order   string `json:"order"`
}

// UpdateUserInput is a partial profile update. Nil fields are left alone.
type UpdateUserInput struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
	Phone       *string `json:"phone"`
}

func (u UpdateUserInput) Validate() error {
	err := validation.ValidateStruct(&u,
		validation.Field(&u.Username, validation.Length(UsernameMinLen, UsernameMaxLen), validation.Match(UsernameRegex)),
		validation.Field(&u.DisplayName, validation.Length(DisplayNameMinLen, DisplayNameMaxLen)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid update payload").
			WithCode(goerrors.CodeBadRequest)
	}

	if u.Phone != nil && *u.Phone != "" {
		parsed, err := phonenumbers.Parse(*u.Phone, "")
		if err != nil || !phonenumbers.IsValidNumber(parsed) {
			return goerrors.New("invalid phone number", goerrors.CategoryValidation).
				WithCode(goerrors.CodeBadRequest)
		}
	}

	return nil
}

func (u UpdateUserInput) empty() bool {
	return u.Username == nil && u.DisplayName == nil && u.Phone == nil
}

// UsersService exposes account lookup and profile management.
type UsersService struct {
	repo   RepositoryManager
	store  blob.Store
	logger Logger
}

func NewUsersService(repo RepositoryManager, store blob.Store) *UsersService {
	return &UsersService{
		repo:   repo,
		store:  store,
		logger: defLogger{},
	}
}

// WithLogger will set logger
func (us *UsersService) WithLogger(logger Logger) *UsersService {
	if logger != nil {
		us.logger = logger
	}
	return us
}

// FindAll pages through accounts with roles and pictures loaded.
func (us *UsersService) FindAll(ctx context.Context, opts ListUsersOptions) (*UserPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 20
	}

	total, err := us.repo.Users().Count(ctx)
	if err != nil {
		return nil, asRichError(err, "failed to count users")
	}

	records, err := us.repo.Users().ListPage(ctx, opts.Page, opts.Limit, opts.OrderBy, opts.Order)
	if err != nil {
		return nil, asRichError(err, "failed to list users")
	}

	return &UserPage{
		Total: total,
		Page:  opts.Page,
		Limit: opts.Limit,
		Users: records,
	}, nil
}

// FindOne resolves an account by id or username, whichever the identifier
// parses as.
func (us *UsersService) FindOne(ctx context.Context, identifier string) (*User, error) {
	if id, err := uuid.Parse(identifier); err == nil {
		return us.repo.Users().GetWithRelations(ctx, id)
	}
	return us.repo.Users().GetByIdentifier(ctx, identifier)
}

// Update applies a partial profile change. An empty patch and a patch that
// changes nothing are both rejected.
func (us *UsersService) Update(ctx context.Context, identifier string, input UpdateUserInput) (*User, error) {
	if input.empty() {
		return nil, ErrEmptyUpdate
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}

	user, err := us.FindOne(ctx, identifier)
	if err != nil {
		return nil, err
	}

	err = us.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		changed := false

		if input.Username != nil && *input.Username != user.Username {
			taken, err := us.repo.Users().ExistsByUsernameTx(ctx, tx, *input.Username)
			if err != nil {
				return err
			}
			if taken {
				return ErrUsernameInUse
			}
			user.Username = *input.Username
			changed = true
		}

		if input.DisplayName != nil {
			name := strings.TrimSpace(*input.DisplayName)
			if user.DisplayName == nil || name != *user.DisplayName {
				user.DisplayName = &name
				changed = true
			}
		}

		if input.Phone != nil {
			if user.Phone == nil || *input.Phone != *user.Phone {
				user.Phone = input.Phone
				changed = true
			}
		}

		if !changed {
			return ErrNoChanges
		}

		_, err := tx.NewUpdate().Model(user).
			Column("username", "display_name", "phone").
			Where("id = ?", user.ID).
			Exec(ctx)
		return err
	})

	if err != nil {
		return nil, asRichError(err, "profile update transaction failed")
	}

	us.logger.Info("user %s has updated their profile", user.ID)
	return user, nil
}

// Delete removes an account, its role grants, and its stored picture.
func (us *UsersService) Delete(ctx context.Context, identifier string) (*User, error) {
	user, err := us.FindOne(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if err := us.deletePictureIfExists(ctx, user); err != nil {
		return nil, err
	}

	err = us.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return us.repo.Users().RemoveTx(ctx, tx, user.ID)
	})
	if err != nil {
		return nil, asRichError(err, "account deletion transaction failed")
	}

	us.logger.Info("user %s has been deleted", user.ID)
	return user, nil
}

// UpdatePicture uploads a new profile picture and replaces the old one.
func (us *UsersService) UpdatePicture(ctx context.Context, identifier, contentType string, body io.Reader) (*User, error) {
	user, err := us.FindOne(ctx, identifier)
	if err != nil {
		return nil, err
	}

	key := blob.NewStorageKey("pictures")
	object, err := us.store.Upload(ctx, key, contentType, body)
	if err != nil {
		return nil, asRichError(err, "picture upload failed")
	}

	old := user.Picture

	err = us.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		picture := &Picture{
			ID:         uuid.New(),
			URL:        object.URL,
			StorageKey: &object.Key,
		}
		if picture, err = us.repo.Pictures().CreateTx(ctx, tx, picture); err != nil {
			return err
		}

		if _, err := tx.NewUpdate().Model((*User)(nil)).
			Set("picture_id = ?", picture.ID).
			Where("id = ?", user.ID).
			Exec(ctx); err != nil {
			return err
		}

		user.PictureID = &picture.ID
		user.Picture = picture

		if old != nil {
			return us.repo.Pictures().RemoveTx(ctx, tx, old.ID)
		}
		return nil
	})
	if err != nil {
		return nil, asRichError(err, "picture update transaction failed")
	}

	if old != nil && old.StorageKey != nil {
		if err := us.store.Delete(ctx, *old.StorageKey); err != nil {
			us.logger.Warn("failed to delete stored picture %s: %s", *old.StorageKey, err)
		}
	}

	us.logger.Info("user %s has updated their picture", user.ID)
	return user, nil
}

// DeletePicture removes the profile picture. Missing picture is not found.
func (us *UsersService) DeletePicture(ctx context.Context, identifier string) (*User, error) {
	user, err := us.FindOne(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if user.Picture == nil {
		return nil, ErrPictureNotFound
	}

	if err := us.deletePictureIfExists(ctx, user); err != nil {
		return nil, err
	}

	us.logger.Info("user %s has deleted their picture", user.ID)
	return user, nil
}

func (us *UsersService) deletePictureIfExists(ctx context.Context, user *User) error {
	if user.Picture == nil {
		return nil
	}

	picture := user.Picture

	err := us.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().Model((*User)(nil)).
			Set("picture_id = NULL").
			Where("id = ?", user.ID).
			Exec(ctx); err != nil {
			return err
		}
		return us.repo.Pictures().RemoveTx(ctx, tx, picture.ID)
	})
	if err != nil {
		return asRichError(err, "picture deletion transaction failed")
	}

	user.Picture = nil
	user.PictureID = nil

	if picture.StorageKey != nil {
		if err := us.store.Delete(ctx, *picture.StorageKey); err != nil {
			us.logger.Warn("failed to delete stored picture %s: %s", *picture.StorageKey, err)
		}
	}

	return nil
}
