package catalog

import (
	"context"
	"errors"
	"time"

	"autohaus.io/cms/internal/model"
	apperrors "autohaus.io/cms/internal/pkg/errors"
	"autohaus.io/cms/internal/store"
)

type vehicleHooks struct {
	model.NopHooks
}

// Validate keeps the model consistent with the make and stamps the publish
// date the first time a listing is published.
func (vehicleHooks) Validate(ctx context.Context, hc *model.HookContext) error {
	rec := hc.Record
	makeID, modelID := rec.String("make"), rec.String("model")
	if makeID != "" && modelID != "" {
		m, err := hc.Tx.Get(ctx, "model", modelID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err == nil && m.String("make") != makeID {
			return apperrors.ErrValidationFailed(apperrors.FieldError{
				Field:   "model",
				Code:    "MODEL_MAKE_MISMATCH",
				Message: "model does not belong to the selected make",
			})
		}
	}

	if published, _ := rec.Get("published").(bool); published && rec.String("published_date") == "" {
		rec.Values["published_date"] = time.Now().UTC().Format(time.DateOnly)
	}
	return nil
}
