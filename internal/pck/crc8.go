package pck

// CRC-8/I-432-1: width 8, poly 0x07, init 0x00, no input/output
// reflection, xorout 0x55 (check value for ASCII "123456789" is 0xA1).
// https://reveng.sourceforge.io/crc-catalogue/1-15.htm
//
// No third-party Go module in the retrieved corpus implements this
// 8-bit variant (the corpus's CRC users all reach for hash/crc32 or
// hash/crc64); the table below is generated once at package init from
// the bare polynomial, the standard construction for a table-driven
// byte-at-a-time CRC.
const crc8Poly = 0x07

var crc8Table [256]byte

func init() {
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ crc8Poly
			} else {
				crc <<= 1
			}
		}
		crc8Table[i] = crc
	}
}

// crc8 computes CRC-8/I-432-1 over the concatenation of the given byte
// slices, matching pck.rs's calc_checksum_crc_8_i_423_1.
func crc8(parts ...[]byte) byte {
	var crc byte
	for _, p := range parts {
		for _, b := range p {
			crc = crc8Table[crc^b]
		}
	}
	return crc ^ 0x55
}
