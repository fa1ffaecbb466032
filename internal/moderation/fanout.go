package moderation

import (
	"errors"
	"fmt"
)

// FanoutResult collects per-recipient failures of a best-effort send.
type FanoutResult struct {
	Delivered int
	Failed    map[int64]error
}

func (r FanoutResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for id, err := range r.Failed {
		errs = append(errs, fmt.Errorf("recipient %d: %w", id, err))
	}
	return errors.Join(errs...)
}

// fanout calls send for every recipient and never stops early.
func fanout(recipients []int64, send func(id int64) error) FanoutResult {
	res := FanoutResult{}
	for _, id := range recipients {
		if err := send(id); err != nil {
			if res.Failed == nil {
				res.Failed = make(map[int64]error)
			}
			res.Failed[id] = err
			continue
		}
		res.Delivered++
	}
	return res
}
