package jobs

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/yourusername/sort-forge/internal/apperr"
)

// Validator は投入されたジョブのパラメータを検証します。
type Validator struct {
	maxConcurrency int
}

// NewValidator は Validator を作成します。
func NewValidator(maxConcurrency int) *Validator {
	return &Validator{maxConcurrency: maxConcurrency}
}

// Validate は concurrency と URL を順に検証し、最初に見つかった問題を返します。
// URL のスキームはパーサーが小文字化するため HTTP:// も受け付けます。
func (v *Validator) Validate(job Job) (ValidatedJob, error) {
	concurrency, err := strconv.Atoi(strings.TrimSpace(job.Concurrency))
	if err != nil {
		return ValidatedJob{}, apperr.Wrap(apperr.ErrConcurrencyNotInteger, err)
	}
	if concurrency <= 0 {
		return ValidatedJob{}, apperr.ErrConcurrencyNotPositive
	}
	if concurrency > v.maxConcurrency {
		return ValidatedJob{}, apperr.ConcurrencyTooLarge(v.maxConcurrency)
	}

	u, err := url.Parse(job.URL)
	if err != nil {
		return ValidatedJob{}, apperr.Wrap(apperr.ErrInvalidURL, err)
	}
	if u.Scheme != "http" {
		return ValidatedJob{}, apperr.Wrap(apperr.ErrSchemeNotHTTP, fmt.Errorf("scheme %q", u.Scheme))
	}

	return ValidatedJob{
		ID:          job.ID,
		Concurrency: concurrency,
		URL:         u,
	}, nil
}
