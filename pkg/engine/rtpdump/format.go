package rtpdump

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

const (
	magic       = "#!rtpplay1.0"
	fileHdrSize = 16
	recHdrSize  = 8
	maxRecord   = 1<<16 - 1
)

// fileHeader is the text line plus the binary RD_hdr_t that open every dump.
type fileHeader struct {
	Addr  netip.Addr
	Port  uint16
	Start time.Time
}

func (h fileHeader) source() string {
	return fmt.Sprintf("%s/%d", h.Addr, h.Port)
}

func readFileHeader(r *bufio.Reader) (fileHeader, int64, error) {
	var h fileHeader

	line, err := r.ReadString('\n')
	if err != nil {
		return h, 0, err
	}
	n := int64(len(line))
	fields := strings.Fields(line)
	if len(fields) < 1 || fields[0] != magic {
		return h, n, errBadMagic
	}

	var raw [fileHdrSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return h, n, err
	}
	n += fileHdrSize

	sec := binary.BigEndian.Uint32(raw[0:4])
	usec := binary.BigEndian.Uint32(raw[4:8])
	h.Start = time.Unix(int64(sec), int64(usec)*1000).UTC()
	h.Addr = netip.AddrFrom4([4]byte(raw[8:12]))
	h.Port = binary.BigEndian.Uint16(raw[12:14])

	// The text line is authoritative when it parses.
	if len(fields) > 1 {
		if addr, port, ok := parseSource(fields[1]); ok {
			h.Addr, h.Port = addr, port
		}
	}
	return h, n, nil
}

func parseSource(s string) (netip.Addr, uint16, bool) {
	host, portStr, ok := strings.Cut(s, "/")
	if !ok {
		return netip.Addr{}, 0, false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil || !addr.Is4() {
		return netip.Addr{}, 0, false
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return netip.Addr{}, 0, false
	}
	return addr, uint16(port), true
}

func writeFileHeader(w io.Writer, h fileHeader) error {
	if !h.Addr.Is4() {
		h.Addr = netip.IPv4Unspecified()
	}
	if _, err := fmt.Fprintf(w, "%s %s\n", magic, h.source()); err != nil {
		return err
	}
	var raw [fileHdrSize]byte
	binary.BigEndian.PutUint32(raw[0:4], uint32(h.Start.Unix()))
	binary.BigEndian.PutUint32(raw[4:8], uint32(h.Start.Nanosecond()/1000))
	a := h.Addr.As4()
	copy(raw[8:12], a[:])
	binary.BigEndian.PutUint16(raw[12:14], h.Port)
	_, err := w.Write(raw[:])
	return err
}

// record is one RD_packet_t. plen is the RTP packet length, 0 for RTCP.
type record struct {
	plen   uint16
	offset uint32 // milliseconds since Start
	data   []byte
}

func (r record) isRTCP() bool { return r.plen == 0 }

// readRecord reads the next record into buf, growing it as needed.
func readRecord(r io.Reader, buf []byte) (record, []byte, error) {
	var hdr [recHdrSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return record{}, buf, err
	}
	length := int(binary.BigEndian.Uint16(hdr[0:2]))
	if length < recHdrSize {
		return record{}, buf, errShortRecord
	}
	rec := record{
		plen:   binary.BigEndian.Uint16(hdr[2:4]),
		offset: binary.BigEndian.Uint32(hdr[4:8]),
	}

	size := length - recHdrSize
	if cap(buf) < size {
		buf = make([]byte, size)
	}
	buf = buf[:size]
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return record{}, buf, err
	}
	rec.data = buf
	return rec, buf, nil
}

func writeRecord(w io.Writer, rec record) error {
	if len(rec.data) > maxRecord-recHdrSize {
		return errRecordTooLarge
	}
	var hdr [recHdrSize]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(len(rec.data)+recHdrSize))
	binary.BigEndian.PutUint16(hdr[2:4], rec.plen)
	binary.BigEndian.PutUint32(hdr[4:8], rec.offset)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(rec.data)
	return err
}
