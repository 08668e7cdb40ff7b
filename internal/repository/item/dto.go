package item

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	domitem "github.com/groupmesh/incsearch/internal/domain/item"
)

// itemDTO is the persisted item record.
type itemDTO struct {
	ID     string            `msgpack:"id"`
	Folder string            `msgpack:"fl"`
	Stamp  int64             `msgpack:"st"`
	Props  map[string]string `msgpack:"pr"`
}

func encode(it domitem.Item) ([]byte, error) {
	dto := itemDTO{
		ID:     it.ID(),
		Folder: it.Folder(),
		Stamp:  it.Stamp(),
		Props:  it.Props(),
	}
	data, err := msgpack.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	return data, nil
}

func decode(data []byte) (domitem.Item, error) {
	var dto itemDTO
	if err := msgpack.Unmarshal(data, &dto); err != nil {
		return domitem.Item{}, fmt.Errorf("unmarshal item: %w", err)
	}
	return domitem.Reconstruct(dto.ID, dto.Folder, dto.Stamp, dto.Props), nil
}
