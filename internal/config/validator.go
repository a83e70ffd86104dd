package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// custom tags and their messages; {0} is the field, {1} the parameter
var customTranslations = map[string]string{
	"file":          "{0} must be an existing and readable file",
	"tls_pair":      "{0} must be set together with {1}",
	"database_name": "{0} is required for the {1} storage driver",
}

func newValidator() (*validator.Validate, ut.Translator, error) {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("file", isReadableFile); err != nil {
		return nil, nil, fmt.Errorf("failed to register file validation: %w", err)
	}
	validate.RegisterStructValidation(validateServer, ServerConfig{})
	validate.RegisterStructValidation(validateStorage, Config{})

	for tag, message := range customTranslations {
		if err := validate.RegisterTranslation(tag, trans, registerMessage(tag, message), translateField); err != nil {
			return nil, nil, fmt.Errorf("failed to register %s translation: %w", tag, err)
		}
	}
	return validate, trans, nil
}

func registerMessage(tag, message string) validator.RegisterTranslationsFunc {
	return func(ut ut.Translator) error {
		return ut.Add(tag, message, true)
	}
}

func translateField(ut ut.Translator, fe validator.FieldError) string {
	t, err := ut.T(fe.Tag(), strings.TrimPrefix(fe.Namespace(), "Config."), fe.Param())
	if err != nil {
		return fe.Error()
	}
	return t
}

// isReadableFile reports whether the field names a regular file this process can open.
func isReadableFile(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if path == "" {
		return false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// TLS needs both a certificate and a key.
func validateServer(sl validator.StructLevel) {
	server := sl.Current().Interface().(ServerConfig)
	switch {
	case server.TLSCertFile != "" && server.TLSKeyFile == "":
		sl.ReportError(server.TLSKeyFile, "tls_key_file", "TLSKeyFile", "tls_pair", "server.tls_cert_file")
	case server.TLSKeyFile != "" && server.TLSCertFile == "":
		sl.ReportError(server.TLSCertFile, "tls_cert_file", "TLSCertFile", "tls_pair", "server.tls_key_file")
	}
}

func validateStorage(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	switch cfg.Storage.Driver {
	case StorageMySQL, StoragePostgres:
		if cfg.Database.Database == "" {
			sl.ReportError(cfg.Database.Database, "database.database", "Database", "database_name", cfg.Storage.Driver)
		}
	}
}
