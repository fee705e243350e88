package domain

import "errors"

// ErrInvalidInput marca errores síncronos y accionables localmente:
// parámetros mal tipados, nombres duplicados o desconocidos, precio
// ausente en una orden limit.
var ErrInvalidInput = errors.New("invalid input")

// ErrChannel marca fallos de despacho hacia el action sink. Se devuelven
// al caller de execute sin reintento interno.
var ErrChannel = errors.New("channel error")
