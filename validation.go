package sxpauth

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex       = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	uppercaseRegex   = regexp.MustCompile(`[A-Z]`)
	lowercaseRegex   = regexp.MustCompile(`[a-z]`)
	digitRegex       = regexp.MustCompile(`[0-9]`)
	specialCharRegex = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>\/?~` + "`" + `]`)
	nameRegex        = regexp.MustCompile(`^[\p{L}\p{N}\s'\-]+$`)

	// Entries that satisfy the complexity rules but are still easy to guess.
	// Lookups are case-insensitive.
	commonPasswords = map[string]bool{
		"password1!":   true,
		"password123!": true,
		"password@123": true,
		"p@ssw0rd":     true,
		"p@ssword1":    true,
		"passw0rd!":    true,
		"welcome1!":    true,
		"welcome123!":  true,
		"qwerty123!":   true,
		"qwerty1!":     true,
		"admin123!":    true,
		"admin@123":    true,
		"letmein1!":    true,
		"abc123!@#":    true,
		"iloveyou1!":   true,
		"sunshine1!":   true,
		"monkey123!":   true,
		"football1!":   true,
		"changeme1!":   true,
		"test1234!":    true,
		"summer2024!":  true,
		"winter2024!":  true,
		"summer2025!":  true,
		"winter2025!":  true,
		"summer2026!":  true,
		"winter2026!":  true,
	}
)

const (
	minPasswordLength = 8
	minNameLength     = 2
	maxNameLength     = 50
)

func validateEmail(email string) []string {
	switch {
	case strings.TrimSpace(email) == "":
		return []string{"Email is required"}
	case !emailRegex.MatchString(email):
		return []string{"Please enter a valid email address"}
	}
	return nil
}

// validatePasswordStrength returns every complexity rule the password breaks.
func validatePasswordStrength(password string) []string {
	if password == "" {
		return []string{"Password is required"}
	}

	var problems []string
	if len(password) < minPasswordLength {
		problems = append(problems, "Password must be at least 8 characters long")
	}
	if !uppercaseRegex.MatchString(password) {
		problems = append(problems, "Password must contain at least one uppercase letter")
	}
	if !lowercaseRegex.MatchString(password) {
		problems = append(problems, "Password must contain at least one lowercase letter")
	}
	if !digitRegex.MatchString(password) {
		problems = append(problems, "Password must contain at least one number")
	}
	if !specialCharRegex.MatchString(password) {
		problems = append(problems, "Password must contain at least one special character")
	}
	return problems
}

func isCommonPassword(password string) bool {
	return commonPasswords[strings.ToLower(password)]
}

func validateName(name string) []string {
	trimmed := strings.TrimSpace(name)
	n := utf8.RuneCountInString(trimmed)
	switch {
	case trimmed == "":
		return []string{"Name is required"}
	case n < minNameLength || n > maxNameLength:
		return []string{"Name must be between 2 and 50 characters"}
	case !nameRegex.MatchString(trimmed):
		return []string{"Name can only contain letters, numbers, spaces, hyphens and apostrophes"}
	}
	return nil
}

func validateSignup(req SignupRequest, requireTerms bool) *ValidationError {
	var problems []string
	problems = append(problems, validateEmail(req.Email)...)
	problems = append(problems, validatePasswordStrength(req.Password)...)
	problems = append(problems, validateName(req.Name)...)
	if requireTerms && !req.AcceptedTerms {
		problems = append(problems, "You must accept the terms and conditions")
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// validateLogin only checks presence; credential format is not revealed.
func validateLogin(creds Credentials) *ValidationError {
	var problems []string
	if strings.TrimSpace(creds.Email) == "" {
		problems = append(problems, "Email is required")
	}
	if creds.Password == "" {
		problems = append(problems, "Password is required")
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

func validateNewPassword(password string) error {
	if problems := validatePasswordStrength(password); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	if isCommonPassword(password) {
		return ErrWeakPassword
	}
	return nil
}
