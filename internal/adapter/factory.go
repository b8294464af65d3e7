package adapter

import (
	"fmt"

	"GoBBSPoster/internal/model"
)

// adapterRegistry は、板の種別と BoardAdapter 実装のマッピングを保持します。
var adapterRegistry = map[model.BoardKind]func() BoardAdapter{
	model.KindFiveCh: NewFiveChAdapter,
	model.KindCompat: NewCompatAdapter,
	model.KindJBBS:   NewJBBSAdapter,
}

// GetAdapter は、指定された種別に対応する BoardAdapter の新しいインスタンスを返します。
// 種別が空の場合は 5ch として扱います。
func GetAdapter(kind model.BoardKind) (BoardAdapter, error) {
	if kind == "" {
		kind = model.KindFiveCh
	}
	factory, ok := adapterRegistry[kind]
	if !ok {
		return nil, fmt.Errorf("板の種別 '%s' に対応するアダプタが見つかりません", kind)
	}
	return factory(), nil
}
