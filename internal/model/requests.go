package model

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Business constraints
const (
	MaxNameLength        = 32
	MaxDescriptionLength = 1024
	MaxContentLength     = 2000
	MaxMentionsPerMsg    = 64
	MaxAttachmentsPerMsg = 10
	MaxGroupRecipients   = 50
	MaxReasonLength      = 1024
	MaxAttachmentSize    = 20 << 20
)

var (
	// usernames: letters, digits, underscore, dot and dash. Blocks zero width and lookalike characters.
	usernamePattern  = regexp.MustCompile(`^(\p{L}|[\d_.-])+$`)
	emojiNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("emojiname", func(fl validator.FieldLevel) bool {
		return emojiNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("channelkind", func(fl validator.FieldLevel) bool {
		return ChannelKind(fl.Field().String()).IsServerScoped()
	})
	_ = v.RegisterValidation("subjectkind", func(fl validator.FieldLevel) bool {
		k := SubjectKind(fl.Field().String())
		return k == SubjectRole || k == SubjectUser
	})
	return v
}

// Validate checks a request struct and returns one FieldError per failed rule
func Validate(req any) []FieldError {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fieldPath(fe), Message: fieldMessage(fe)})
	}
	return out
}

// fieldPath drops the root struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "username":
		return "may only contain letters, digits, underscores, dots and dashes"
	case "emojiname":
		return "may only contain lowercase letters, digits and underscores"
	case "channelkind":
		return "must be text or voice"
	case "subjectkind":
		return "must be role or user"
	case "unique":
		return "must not contain duplicates"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// OnboardRequest completes onboarding by choosing a username
type OnboardRequest struct {
	Username string `json:"username" validate:"required,min=2,max=32,username"`
}

// CreateServerRequest represents a request to create a server
type CreateServerRequest struct {
	Name        string `json:"name" validate:"required,max=32"`
	Description string `json:"description,omitempty" validate:"max=1024"`
}

// UpdateServerRequest represents a request to edit a server
type UpdateServerRequest struct {
	Name               *string     `json:"name,omitempty" validate:"omitnil,min=1,max=32"`
	Description        *string     `json:"description,omitempty" validate:"omitnil,max=1024"`
	DefaultPermissions *Permission `json:"default_permissions,omitempty"`
}

// CreateRoleRequest represents a request to add a role to a server
type CreateRoleRequest struct {
	Name        string    `json:"name" validate:"required,max=32"`
	Rank        int       `json:"rank" validate:"min=0"`
	Permissions Overrides `json:"permissions"`
	Colour      string    `json:"colour,omitempty" validate:"max=128"`
	Hoist       bool      `json:"hoist,omitempty"`
}

// UpdateRoleRequest represents a request to edit a role
type UpdateRoleRequest struct {
	Name        *string    `json:"name,omitempty" validate:"omitnil,min=1,max=32"`
	Rank        *int       `json:"rank,omitempty" validate:"omitnil,min=0"`
	Permissions *Overrides `json:"permissions,omitempty"`
	Colour      *string    `json:"colour,omitempty" validate:"omitnil,max=128"`
	Hoist       *bool      `json:"hoist,omitempty"`
}

// OverwriteInput is an overwrite as supplied by a caller
type OverwriteInput struct {
	Subject     string      `json:"subject" validate:"required"`
	SubjectKind SubjectKind `json:"subject_kind" validate:"required,subjectkind"`
	Allow       Permission  `json:"allow"`
	Deny        Permission  `json:"deny"`
}

// Overwrite converts the input to an Overwrite
func (in OverwriteInput) Overwrite() Overwrite {
	return Overwrite{
		Subject:     in.Subject,
		SubjectKind: in.SubjectKind,
		Overrides:   Overrides{Allow: in.Allow, Deny: in.Deny},
	}
}

// CreateChannelRequest represents a request to create a server channel
type CreateChannelRequest struct {
	Name        string           `json:"name" validate:"required,max=32"`
	Kind        ChannelKind      `json:"kind" validate:"required,channelkind"`
	Description string           `json:"description,omitempty" validate:"max=1024"`
	Overwrites  []OverwriteInput `json:"overwrites,omitempty" validate:"dive"`
}

// UpdateChannelRequest represents a request to edit a channel
type UpdateChannelRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitnil,min=1,max=32"`
	Description *string `json:"description,omitempty" validate:"omitnil,max=1024"`
}

// CreateGroupRequest represents a request to create a group channel
type CreateGroupRequest struct {
	Name        string   `json:"name" validate:"required,max=32"`
	Description string   `json:"description,omitempty" validate:"max=1024"`
	Recipients  []string `json:"recipients,omitempty" validate:"max=49,unique,dive,required"`
}

// AttachmentInput describes an already uploaded file attached to a message
type AttachmentInput struct {
	Filename    string `json:"filename" validate:"required,max=128"`
	ContentType string `json:"content_type" validate:"required,max=128"`
	Size        int64  `json:"size" validate:"gt=0,max=20971520"`
}

// SendMessageRequest represents a request to post a message
type SendMessageRequest struct {
	Content     string            `json:"content" validate:"required_without=Attachments,max=2000"`
	Mentions    []string          `json:"mentions,omitempty" validate:"max=64,dive,required"`
	Attachments []AttachmentInput `json:"attachments,omitempty" validate:"max=10,dive"`
}

// EditMessageRequest represents a request to change a message's content
type EditMessageRequest struct {
	Content  string   `json:"content" validate:"required,max=2000"`
	Mentions []string `json:"mentions,omitempty" validate:"max=64,dive,required"`
}

// BanRequest represents a request to ban a user
type BanRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=1024"`
}

// UpdateNicknameRequest represents a request to change a member's nickname
type UpdateNicknameRequest struct {
	Nickname string `json:"nickname" validate:"max=32"`
}

// CreateWebhookRequest represents a request to create a webhook
type CreateWebhookRequest struct {
	Name string `json:"name" validate:"required,max=32"`
}

// CreateEmojiRequest represents a request to add a custom emoji
type CreateEmojiRequest struct {
	Name     string `json:"name" validate:"required,max=32,emojiname"`
	Animated bool   `json:"animated,omitempty"`
}

// Validate validates the request
func (r *OnboardRequest) Validate() []FieldError {
	return Validate(r)
}

// Validate validates the request
func (r *CreateServerRequest) Validate() []FieldError {
	return Validate(r)
}

// Validate validates the request
func (r *UpdateServerRequest) Validate() []FieldError {
	return Validate(r)
}

// Validate validates the request
func (r *CreateRoleRequest) Validate() []FieldError {
	return Validate(r)
}

// Validate validates the request
func (r *UpdateRoleRequest) Validate() []FieldError {
	return Validate(r)
}

// Validate validates the request
func (r *CreateChannelRequest) Validate() []FieldError {
	return Validate(r)
}

// Validate validates the request
func (r *UpdateChannelRequest) Validate() []FieldError {
	return Validate(r)
}

// Validate validates the request
func (r *CreateGroupRequest) Validate() []FieldError {
	return Validate(r)
}

// Validate validates the request
func (r *SendMessageRequest) Validate() []FieldError {
	return Validate(r)
}

// Validate validates the request
func (r *EditMessageRequest) Validate() []FieldError {
	return Validate(r)
}

// Validate validates the request
func (r *BanRequest) Validate() []FieldError {
	return Validate(r)
}

// Validate validates the request
func (r *UpdateNicknameRequest) Validate() []FieldError {
	return Validate(r)
}

// Validate validates the request
func (r *CreateWebhookRequest) Validate() []FieldError {
	return Validate(r)
}

// Validate validates the request
func (r *CreateEmojiRequest) Validate() []FieldError {
	return Validate(r)
}
