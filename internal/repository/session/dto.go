package session

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	domses "github.com/groupmesh/incsearch/internal/domain/session"
)

// sessionDTO is the persisted session record.
type sessionDTO struct {
	IndexHandle string           `msgpack:"h"`
	Fingerprint uint64           `msgpack:"f"`
	Transmitted map[string]int64 `msgpack:"t"`
	Active      bool             `msgpack:"a"`
}

func encode(s *domses.Session) ([]byte, error) {
	dto := sessionDTO{
		IndexHandle: s.IndexHandle(),
		Fingerprint: s.Fingerprint(),
		Transmitted: s.Transmitted(),
		Active:      s.Active(),
	}
	data, err := msgpack.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return data, nil
}

func decode(user, view string, data []byte) (*domses.Session, error) {
	var dto sessionDTO
	if err := msgpack.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return domses.Reconstruct(
		user, view, dto.IndexHandle, dto.Fingerprint, dto.Transmitted, dto.Active,
	), nil
}
