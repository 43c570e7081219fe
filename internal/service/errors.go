package service

import (
	"errors"
	"fmt"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/model"
)

// Centralized service layer errors.
// Every error returned by a service method is a *model.Error, so callers can
// branch on kind with errors.Is(err, model.ErrNotFound) or on the specific
// sentinel below.

// ===== Not Found Errors =====
var (
	ErrUserNotFound      = model.NewNotFoundError("user")
	ErrServerNotFound    = model.NewNotFoundError("server")
	ErrChannelNotFound   = model.NewNotFoundError("channel")
	ErrMemberNotFound    = model.NewNotFoundError("member")
	ErrRoleNotFound      = model.NewNotFoundError("role")
	ErrBanNotFound       = model.NewNotFoundError("ban")
	ErrMessageNotFound   = model.NewNotFoundError("message")
	ErrWebhookNotFound   = model.NewNotFoundError("webhook")
	ErrEmojiNotFound     = model.NewNotFoundError("emoji")
	ErrInviteNotFound    = model.NewNotFoundError("invite")
	ErrOverwriteNotFound = model.NewNotFoundError("overwrite")
	ErrRecipientNotFound = model.NewNotFoundError("recipient")
)

// ===== Authorization Errors =====
var (
	ErrMissingPermission = model.NewError(model.ErrCodeForbidden, "missing permission")
	ErrNotAuthor         = model.NewError(model.ErrCodeForbidden, "not the author of this message")
	ErrNotOwner          = model.NewError(model.ErrCodeForbidden, "only the owner may do this")
	ErrCannotGrantUnheld = model.NewError(model.ErrCodeForbidden, "cannot grant or deny permissions not held")
	ErrOutrankedTarget   = model.NewError(model.ErrCodeInsufficientRank, "target holds an equal or higher role")
	ErrRoleAboveActor    = model.NewError(model.ErrCodeInsufficientRank, "role is ranked at or above your own")
	ErrNotChannelType    = model.NewError(model.ErrCodeForbidden, "operation not supported on this channel kind")
)

// ===== Membership Errors =====
var (
	ErrUserBanned       = model.NewError(model.ErrCodeBanned, "user is banned from this server")
	ErrAlreadyMember    = model.NewError(model.ErrCodeAlreadyMember, "already a member of this server")
	ErrAlreadyRecipient = model.NewError(model.ErrCodeAlreadyMember, "already a recipient of this group")
	ErrOwnerCannotLeave = model.NewError(model.ErrCodeOwnerCannotLeave, "transfer ownership before leaving")
	ErrAlreadyBanned    = model.NewError(model.ErrCodeConflict, "user is already banned")
	ErrGroupFull        = model.NewError(model.ErrCodeValidation, "group has reached its recipient limit")
	ErrCannotTargetSelf = model.NewError(model.ErrCodeValidation, "cannot target yourself")
)

// ===== Consistency Errors =====
var (
	ErrInvalidOverwriteSubject = model.NewError(model.ErrCodeInvalidOverwriteSubject, "overwrite subject is not a role of this server or a current member")
	ErrStaleAcknowledgement    = model.NewError(model.ErrCodeStaleAcknowledgement, "message never existed in this channel")
	ErrUnreadConflict          = model.NewError(model.ErrCodeConflict, "read state changed concurrently")
	ErrLastMessageConflict     = model.NewError(model.ErrCodeConflict, "last message pointer changed concurrently")
	ErrConcurrentUpdate        = model.NewError(model.ErrCodeConflict, "record changed concurrently")
)

// ===== Onboarding Errors =====
var (
	ErrAlreadyOnboarded = model.NewError(model.ErrCodeAlreadyOnboarded, "account already has a user")
	ErrUsernameTaken    = model.NewError(model.ErrCodeUsernameTaken, "username is taken")
	ErrInvalidToken     = model.NewError(model.ErrCodeForbidden, "invalid webhook token")
)

// storeErr converts a repository failure into a domain error. Errors that
// already are domain errors pass through unchanged.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *model.Error
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, database.ErrConflict) {
		return &model.Error{Code: model.ErrCodeConflict, Detail: op, Err: err}
	}
	return model.NewStoreError(op, err)
}

// writeErr is storeErr for versioned updates. A row deleted under the write
// reports gone.
func writeErr(op string, err error, gone error) error {
	if errors.Is(err, database.ErrNotFound) {
		return gone
	}
	return storeErr(op, err)
}

// invalid returns a validation error when fields failed
func invalid(errs []model.FieldError) error {
	if len(errs) == 0 {
		return nil
	}
	return model.NewValidationError(errs)
}

func missing(perm model.Permission) error {
	return &model.Error{
		Code:   model.ErrCodeForbidden,
		Detail: ErrMissingPermission.Detail,
		Err:    fmt.Errorf("requires permission bits %#x", uint64(perm)),
	}
}
