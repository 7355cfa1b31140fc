package eliza

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tg-digester/internal/domain"
)

// Verify задаёт политику проверки TLS: системное хранилище, отключение проверки
// или собственный CA-бандл.
type Verify struct {
	Skip   bool
	CAFile string
}

// ParseVerify разбирает значение --verify: булево значение или путь к CA-бандлу.
// Относительный путь разрешается от рабочей директории.
func ParseVerify(raw string) (Verify, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Verify{}, nil
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return Verify{Skip: !b}, nil
	}
	path := value
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return Verify{}, fmt.Errorf("%w: путь к сертификату %q: %v", domain.ErrConfiguration, value, err)
		}
		path = abs
	}
	return Verify{CAFile: path}, nil
}

// TLSConfig строит конфигурацию TLS. nil означает настройки по умолчанию.
func (v Verify) TLSConfig() (*tls.Config, error) {
	switch {
	case v.Skip:
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec
	case v.CAFile == "":
		return nil, nil
	}
	pem, err := os.ReadFile(v.CAFile)
	if err != nil {
		return nil, fmt.Errorf("%w: чтение CA-бандла: %v", domain.ErrConfiguration, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%w: в %s нет PEM-сертификатов", domain.ErrConfiguration, v.CAFile)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
