package proto

import (
	"encoding/binary"
	"reflect"
	"runtime"
)

type encoder interface {
	Encode(buf []byte) (int, error)
}

// EncodePacket writes the packet bytes layout of v, which must be a packet
// struct or a pointer to one, into buf. It returns the number of bytes
// written, or ErrShortBuffer when buf cannot hold the packet.
func EncodePacket(buf []byte, v interface{}) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				err = ErrShortBuffer
				return
			}
			panic(r)
		}
	}()
	return encodePacketValue(buf, reflect.ValueOf(v))
}

func encodePacketValue(buf []byte, v reflect.Value) (int, error) {
	rv := v
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		v = v.Elem()
	}

	n := 0
	switch v.Kind() {
	default:
		return n, ErrUnhandledFieldType
	case reflect.Struct:
		if en, ok := rv.Interface().(encoder); ok {
			return en.Encode(buf)
		} else if en, ok := v.Interface().(encoder); ok {
			return en.Encode(buf)
		}
		for i := 0; i < v.NumField(); i++ {
			field := v.Field(i)
			n2, err := encodePacketValue(buf[n:], field)
			n += n2
			if err != nil {
				return n, err
			}
		}
	case reflect.Bool:
		if v.Bool() {
			buf[n] = 1
		} else {
			buf[n] = 0
		}
		n++
	case reflect.Int32:
		binary.BigEndian.PutUint32(buf[n:n+4], uint32(v.Int()))
		n += 4
	case reflect.Int64:
		binary.BigEndian.PutUint64(buf[n:n+8], uint64(v.Int()))
		n += 8
	case reflect.String:
		str := v.String()
		binary.BigEndian.PutUint32(buf[n:n+4], uint32(len(str)))
		copy(buf[n+4:n+4+len(str)], str)
		n += 4 + len(str)
	case reflect.Slice:
		switch v.Type().Elem().Kind() {
		default:
			count := v.Len()
			binary.BigEndian.PutUint32(buf[n:n+4], uint32(count))
			n += 4
			for i := 0; i < count; i++ {
				n2, err := encodePacketValue(buf[n:], v.Index(i))
				n += n2
				if err != nil {
					return n, err
				}
			}
		case reflect.Uint8:
			if v.IsNil() {
				binary.BigEndian.PutUint32(buf[n:n+4], uint32(0xffffffff))
				n += 4
			} else {
				bytes := v.Bytes()
				binary.BigEndian.PutUint32(buf[n:n+4], uint32(len(bytes)))
				copy(buf[n+4:n+4+len(bytes)], bytes)
				n += 4 + len(bytes)
			}
		}
	}
	return n, nil
}

// EncodeFrame encodes parts back to back into one length-prefixed frame: a
// big-endian int32 byte count followed by the concatenated packet bytes.
func EncodeFrame(parts ...interface{}) ([]byte, error) {
	size := 256
	for {
		buf := make([]byte, size)
		n := 4
		short := false
		for _, part := range parts {
			m, err := EncodePacket(buf[n:], part)
			if err == ErrShortBuffer {
				short = true
				break
			}
			if err != nil {
				return nil, err
			}
			n += m
		}
		if short {
			size *= 2
			continue
		}
		binary.BigEndian.PutUint32(buf[:4], uint32(n-4))
		return buf[:n], nil
	}
}
