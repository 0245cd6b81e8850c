package domain

import "errors"

var (
	// ErrBlockNotFound indica que nenhum registro de bloqueio corresponde ao
	// identificador informado.
	ErrBlockNotFound = errors.New("ip block record not found")
)
