package proto

import (
	"encoding/binary"
	"errors"
	"reflect"
	"runtime"
)

// Codec sentinels. ErrShortBuffer is also how Encode reports that the target
// buffer needs to grow.
var (
	ErrShortBuffer        = errors.New("proto: buffer too short")
	ErrUnhandledFieldType = errors.New("proto: unhandled field type")
)

type decoder interface {
	Decode(buf []byte) (int, error)
}

// DecodePacket fills v, which must be a pointer to a packet struct, from the
// packet bytes layout in buf. It returns the number of bytes consumed.
func DecodePacket(buf []byte, v interface{}) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				err = ErrShortBuffer
				return
			}
			panic(r)
		}
	}()
	return decodePacketValue(buf, reflect.ValueOf(v))
}

func decodePacketValue(buf []byte, v reflect.Value) (int, error) {
	rv := v
	kind := v.Kind()
	if kind == reflect.Ptr {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
		kind = v.Kind()
	}

	n := 0
	switch kind {
	default:
		return n, ErrUnhandledFieldType
	case reflect.Struct:
		if de, ok := rv.Interface().(decoder); ok {
			return de.Decode(buf)
		} else if v.CanAddr() {
			if de, ok := v.Addr().Interface().(decoder); ok {
				return de.Decode(buf)
			}
		}
		for i := 0; i < v.NumField(); i++ {
			field := v.Field(i)
			n2, err := decodePacketValue(buf[n:], field)
			n += n2
			if err != nil {
				return n, err
			}
		}
	case reflect.Bool:
		v.SetBool(buf[n] != 0)
		n++
	case reflect.Int32:
		v.SetInt(int64(int32(binary.BigEndian.Uint32(buf[n : n+4]))))
		n += 4
	case reflect.Int64:
		v.SetInt(int64(binary.BigEndian.Uint64(buf[n : n+8])))
		n += 8
	case reflect.String:
		ln := int(binary.BigEndian.Uint32(buf[n : n+4]))
		v.SetString(string(buf[n+4 : n+4+ln]))
		n += 4 + ln
	case reflect.Slice:
		switch v.Type().Elem().Kind() {
		default:
			count := int(binary.BigEndian.Uint32(buf[n : n+4]))
			n += 4
			values := reflect.MakeSlice(v.Type(), count, count)
			v.Set(values)
			for i := 0; i < count; i++ {
				n2, err := decodePacketValue(buf[n:], values.Index(i))
				n += n2
				if err != nil {
					return n, err
				}
			}
		case reflect.Uint8:
			ln := int(int32(binary.BigEndian.Uint32(buf[n : n+4])))
			if ln < 0 {
				n += 4
				v.SetBytes(nil)
			} else {
				bytes := make([]byte, ln)
				copy(bytes, buf[n+4:n+4+ln])
				v.SetBytes(bytes)
				n += 4 + ln
			}
		}
	}
	return n, nil
}
