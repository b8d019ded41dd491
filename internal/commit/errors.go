package commit

import (
	"errors"

	"github.com/goran-ethernal/TzIndexor/internal/common"
)

var errNoBlock = errors.New("block context has no block")

func errNoBaker(level int64) error {
	return common.Invariantf("block %d has no baker", level)
}

func errAppliedTwice(kind string) error {
	return common.Invariantf("%s commit applied twice", kind)
}

func errNotApplied(kind string) error {
	return common.Invariantf("%s commit reverted before it was applied", kind)
}
