package protocol

// CRC-16-CCITT, polynomial 0x1021, initial register 0xFFFF, MSB-first,
// no final XOR. Every packet integrity check in the stack uses this.
const crcPoly uint16 = 0x1021

// Checksum computes CRC-16-CCITT over data.
func Checksum(data []byte) uint16 {
    crc := uint16(0xFFFF)
    for _, b := range data {
        crc ^= uint16(b) << 8
        for i := 0; i < 8; i++ {
            if crc&0x8000 != 0 {
                crc = (crc << 1) ^ crcPoly
            } else {
                crc <<= 1
            }
        }
    }
    return crc
}

// VerifyChecksum reports whether data hashes to want.
func VerifyChecksum(data []byte, want uint16) bool { return Checksum(data) == want }
