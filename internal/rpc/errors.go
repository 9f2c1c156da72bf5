package rpc

import (
	"fmt"

	"github.com/xenocomm/coordinator/internal/xerrors"
)

func counterRequiredErr() error {
	return xerrors.Validation("rpc.respond_to_negotiation", "response \"counter\" requires counter_params")
}

func unknownResponseErr(response string) error {
	return xerrors.Validation("rpc.respond_to_negotiation", fmt.Sprintf("unknown response %q, expected accept|counter|reject", response))
}
