package stepio

import (
	"github.com/renderflow/renderflow/model/types"
	"github.com/viant/structology/conv"
)

var converter *conv.Converter

func init() {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	converter = conv.NewConverter(options)
}

// Bind decodes step parameters into a typed parameter struct, coercing
// scalar kinds the way workflow authors expect ("1" binds an int or a
// bool field). An undecodable value is a configuration failure.
func Bind(parameters map[string]interface{}, target interface{}) error {
	if len(parameters) == 0 {
		return nil
	}
	if err := converter.Convert(parameters, target); err != nil {
		return types.NewConfigurationError(types.ReasonInvalidParameter, "parameters", err.Error())
	}
	return nil
}
