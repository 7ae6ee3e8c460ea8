package config

import "log"

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

// Validate lists the required variables that are not set.
func (c Config) Validate() []string {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.RootAdminEmail == "" {
		missing = append(missing, "EMAIL_ADMIN_ROOT")
	}
	if c.RootAdminPassword == "" {
		missing = append(missing, "PASSWORD_ADMIN_ROOT")
	}
	return missing
}
