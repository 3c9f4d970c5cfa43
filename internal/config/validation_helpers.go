package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	pipegateerrors "github.com/alexisbeaulieu97/pipegate/pkg/errors"
)

// convertValidationError normalizes validator errors into pipegate validation errors.
func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		ve := ves[0]
		field := yamlishFieldName(ve)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		return pipegateerrors.NewValidationError(field, msg, err)
	}

	return pipegateerrors.NewValidationError("config", err.Error(), err)
}

// yamlishFieldName drops the root struct from the namespace, leaving the
// path as written in the document, e.g. pipelines[0].stages[1].ref_id.
func yamlishFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

func fieldForPipeline(index int, field string) string {
	return fmt.Sprintf("pipelines[%d].%s", index, field)
}

func fieldForValidator(index int, field string) string {
	return fmt.Sprintf("validators[%d].%s", index, field)
}
