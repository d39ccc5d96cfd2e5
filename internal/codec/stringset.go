package codec

import (
	"encoding/binary"
	"fmt"
)

// stringSetTag is the built-in tag for Set<String> values.
const stringSetTag = "kvlog.stringset"

// StringSetEncoder is the built-in codec for Set<String> values: a 4-byte
// count followed by {2-byte length, UTF-8 bytes} per element.
type StringSetEncoder struct{}

func (StringSetEncoder) Tag() string { return stringSetTag }

func (StringSetEncoder) Encode(v any) ([]byte, error) {
	set, ok := v.(map[string]struct{})
	if !ok {
		if slice, ok := v.([]string); ok {
			set = make(map[string]struct{}, len(slice))
			for _, s := range slice {
				set[s] = struct{}{}
			}
		} else {
			return nil, fmt.Errorf("codec: stringset encoder got %T", v)
		}
	}

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(set)))

	for s := range set {
		if len(s) > 0xFFFF {
			return nil, fmt.Errorf("codec: stringset element too long: %d bytes", len(s))
		}

		lenBuf := make([]byte, 2)
		binary.LittleEndian.PutUint16(lenBuf, uint16(len(s)))
		buf = append(buf, lenBuf...)
		buf = append(buf, s...)
	}

	return buf, nil
}

func (StringSetEncoder) Decode(data []byte) (any, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("codec: stringset payload too short")
	}

	count := binary.LittleEndian.Uint32(data)
	pos := 4
	set := make(map[string]struct{}, count)

	for i := uint32(0); i < count; i++ {
		if pos+2 > len(data) {
			return nil, fmt.Errorf("codec: stringset payload truncated at element %d", i)
		}

		l := int(binary.LittleEndian.Uint16(data[pos:]))
		pos += 2

		if pos+l > len(data) {
			return nil, fmt.Errorf("codec: stringset payload truncated at element %d", i)
		}

		set[string(data[pos:pos+l])] = struct{}{}
		pos += l
	}

	return set, nil
}
