package base

import (
	"encoding/binary"
	"io"
	"net"
)

const frameHeaderSize = 16

// writeFrame writes a frame to the connection with the format:
// - 4 bytes: partitionID (uint32, big endian)
// - 8 bytes: requestID (uint64, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, partitionID uint32, requestID uint64, data []byte) error {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint32(header[:4], partitionID)
	binary.BigEndian.PutUint64(header[4:12], requestID)
	binary.BigEndian.PutUint32(header[12:16], uint32(len(data)))

	// header and payload in one write
	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads a frame from the connection using the provided buffer
// If the buffer is too small, it will allocate a new temporary buffer for the data
func readFrame(conn io.Reader, buf []byte) (partitionID uint32, requestID uint64, data []byte, err error) {
	if len(buf) < frameHeaderSize {
		buf = make([]byte, frameHeaderSize)
	}

	if _, err := io.ReadFull(conn, buf[:frameHeaderSize]); err != nil {
		return 0, 0, nil, err
	}

	partitionID = binary.BigEndian.Uint32(buf[:4])
	requestID = binary.BigEndian.Uint64(buf[4:12])
	contentLength := int(binary.BigEndian.Uint32(buf[12:16]))

	if contentLength == 0 {
		return partitionID, requestID, []byte{}, nil
	}

	if len(buf) < contentLength {
		buf = make([]byte, contentLength)
	}
	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return 0, 0, nil, err
	}
	return partitionID, requestID, buf[:contentLength], nil
}
