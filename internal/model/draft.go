package model

import (
	"encoding/json"
	"time"
)

// Draft はリモート保存前のエディタ出力を表す。
// 所有者と名前の組で1つのスロットを占め、保存のたびに上書きされる。
type Draft struct {
	Owner     string
	Name      string
	Data      json.RawMessage
	UpdatedAt time.Time
}
