package registration

import (
	"encoding/json"
)

const (
	successJsonKey = "success"
	errorJsonKey   = "error"
)

type GenericApiResponseBody map[string]any

func NewGenericApiSuccessResponseBody() GenericApiResponseBody {
	return map[string]any{
		successJsonKey: true,
	}
}

func NewGenericApiFailureResponseBody(err error) GenericApiResponseBody {
	return map[string]any{
		successJsonKey: false,
		errorJsonKey:   err.Error(),
	}
}

func (b *GenericApiResponseBody) ToString() string {
	marshalled, _ := json.Marshal(b)
	return string(marshalled)
}
