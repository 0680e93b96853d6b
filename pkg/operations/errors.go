package operations

import (
	"context"
	"errors"

	"github.com/kasuganosora/lakebase/pkg/catalog"
	"github.com/kasuganosora/lakebase/pkg/types"
)

func asErr[T error](err error, target *T) bool {
	return errors.As(err, target)
}

// failFromError maps an internal error onto the response envelope, refining
// the fallback code when the error carries a more specific meaning.
func failFromError(fallbackCode string, err error) *types.Response {
	detail := &types.ErrorDetail{Code: fallbackCode, Message: err.Error()}

	var (
		notFound  *catalog.ErrTableNotFound
		exists    *catalog.ErrTableExists
		mismatch  *catalog.ErrTypeMismatch
		conflict  *catalog.ErrCommitConflict
		nsMissing *catalog.ErrNamespaceNotFound
		nsFull    *catalog.ErrNamespaceNotEmpty
	)
	switch {
	case errors.As(err, &exists):
		detail.Code = types.ErrCodeTableExists
		detail.Suggestion = "use if_not_exists or drop the table first"
	case errors.As(err, &mismatch):
		detail.Code = types.ErrCodeValidation
		detail.Field = mismatch.Field
	case errors.As(err, &conflict):
		detail.Suggestion = "another writer committed first; retry the operation"
	case errors.As(err, &notFound):
		detail.Suggestion = "check the namespace and table name, or create the table"
	case errors.As(err, &nsMissing):
		detail.Suggestion = "check the namespace name"
	case errors.As(err, &nsFull):
		detail.Suggestion = "drop the remaining tables first"
	case errors.Is(err, context.DeadlineExceeded):
		detail.Code = types.ErrCodeTimeout
	}

	return types.FailDetail(detail)
}
