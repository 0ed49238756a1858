package booking

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
)

// Booking codes look like NL-A742: the NL- prefix, one uppercase
// letter, three digits.
var codePattern = regexp.MustCompile(`^NL-[A-Z]\d{3}$`)

const codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func GenerateCode() string {
	letter := codeLetters[rand.Intn(len(codeLetters))]
	digits := 100 + rand.Intn(900)
	return fmt.Sprintf("NL-%c%d", letter, digits)
}

func ValidateCode(code string) bool {
	return codePattern.MatchString(code)
}

var codeSearchPattern = regexp.MustCompile(`NL-[A-Z]\d{3}`)

// ExtractCode pulls the first booking code out of free text, ignoring
// case. Empty string when none is present.
func ExtractCode(text string) string {
	return codeSearchPattern.FindString(strings.ToUpper(text))
}

// generateUniqueCode retries against the repository's code index so a
// live booking never shares a code. With only 23400 possible codes a
// collision is plausible; after maxAttempts the last candidate is used
// anyway.
func generateUniqueCode(ctx context.Context, repo Repository) string {
	const maxAttempts = 5

	code := GenerateCode()
	for i := 0; i < maxAttempts; i++ {
		_, err := repo.GetByCode(ctx, code)
		if errors.Is(err, ErrBookingNotFound) {
			return code
		}
		code = GenerateCode()
	}
	return code
}
