package auth

import (
	"fmt"
	"strings"

	"wallet-chat/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type CreateRoomRequest struct {
	Name string `validate:"required,max=100"`
	Type string `validate:"required,oneof=public private"`
}

// ValidateWallet rejects anything that is not a 0x prefixed 20 byte hex address.
func ValidateWallet(wallet string) error {
	if err := validate.Var(strings.TrimSpace(wallet), "required,eth_addr"); err != nil {
		return fmt.Errorf("%w: %q", errors.ErrInvalidWallet, wallet)
	}
	return nil
}

func ValidateCreateRoom(req CreateRoomRequest) error {
	if err := validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && validationErrors[0].Field() == "Type" {
			return fmt.Errorf("%w: %q", errors.ErrInvalidRoomType, req.Type)
		}
		return fmt.Errorf("%w: %v", errors.ErrInvalid, err)
	}
	return nil
}

// ValidateContent trims content and bounds its length in characters.
func ValidateContent(content string, maxLength int) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", errors.ErrEmptyContent
	}
	if err := validate.Var(trimmed, fmt.Sprintf("max=%d", maxLength)); err != nil {
		return "", errors.ErrContentTooLong
	}
	return trimmed, nil
}
