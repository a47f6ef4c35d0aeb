package repository

import (
	"context"

	"drops-backend/internal/features/identity/models"
)

type IdentityRepository interface {
	// CreateVerification issues (or reissues) a verification code for the
	// account. The code is what the viewer types in chat to prove the
	// nickname is theirs.
	CreateVerification(ctx context.Context, accountID int64, code string) error

	// VerifyLink matches a code seen in chat against an open verification
	// and binds the nickname. Returns the linked account id.
	VerifyLink(ctx context.Context, nickname, code string) (int64, bool, error)

	AccountByNickname(ctx context.Context, nickname string) (int64, bool, error)
	NicknameByAccount(ctx context.Context, accountID int64) (string, bool, error)
	List(ctx context.Context) ([]models.Link, error)
}
