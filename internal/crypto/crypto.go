// Package crypto implements the cryptographic primitives the LoRaWAN
// 1.0.3 MAC layer is built on: AES-128 ECB block encryption, AES-CMAC
// message integrity codes, the LoRaWAN counter-mode payload cipher, and
// OTAA session-key derivation. It has no knowledge of frame layout; the
// lorawan package binds these primitives to the B0/A block constructions
// defined by the spec.
package crypto

import (
	"crypto/aes"
	"encoding/binary"

	"github.com/jacobsa/crypto/cmac"
	"github.com/pkg/errors"
)

// KeySize is the size in bytes of an AES-128 key.
const KeySize = 16

// BlockSize is the size in bytes of an AES block.
const BlockSize = 16

// EncryptBlock encrypts a single 16-byte block with AES-128 ECB under key.
func EncryptBlock(key [KeySize]byte, block []byte) ([]byte, error) {
	if len(block) != BlockSize {
		return nil, errors.Errorf("crypto: block must be %d bytes", BlockSize)
	}

	c, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "crypto: new cipher")
	}

	out := make([]byte, BlockSize)
	c.Encrypt(out, block)
	return out, nil
}

// DecryptBlock decrypts a single 16-byte block with AES-128 ECB under key.
func DecryptBlock(key [KeySize]byte, block []byte) ([]byte, error) {
	if len(block) != BlockSize {
		return nil, errors.Errorf("crypto: block must be %d bytes", BlockSize)
	}

	c, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "crypto: new cipher")
	}

	out := make([]byte, BlockSize)
	c.Decrypt(out, block)
	return out, nil
}

// ECBCrypt applies AES-128 ECB (encrypt if encrypt is true, else decrypt)
// to data, which must be a multiple of BlockSize.
func ECBCrypt(key [KeySize]byte, data []byte, encrypt bool) ([]byte, error) {
	if len(data)%BlockSize != 0 {
		return nil, errors.New("crypto: data must be a multiple of the block size")
	}

	c, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "crypto: new cipher")
	}

	out := make([]byte, len(data))
	for i := 0; i < len(data)/BlockSize; i++ {
		offset := i * BlockSize
		if encrypt {
			c.Encrypt(out[offset:offset+BlockSize], data[offset:offset+BlockSize])
		} else {
			c.Decrypt(out[offset:offset+BlockSize], data[offset:offset+BlockSize])
		}
	}
	return out, nil
}

// CMAC computes the AES-CMAC of data under key and returns the full
// 16-byte tag. Callers truncate to the first 4 bytes for a LoRaWAN MIC.
func CMAC(key [KeySize]byte, data []byte) ([]byte, error) {
	hash, err := cmac.New(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "crypto: new cmac")
	}
	if _, err := hash.Write(data); err != nil {
		return nil, errors.Wrap(err, "crypto: write cmac")
	}
	sum := hash.Sum(nil)
	if len(sum) < 4 {
		return nil, errors.New("crypto: cmac returned less than 4 bytes")
	}
	return sum, nil
}

// direction codes used in the A_i / B0 block constructions.
const (
	DirUplink   byte = 0x00
	DirDownlink byte = 0x01
)

// CryptPayload applies the LoRaWAN "counter-mode" FRMPayload cipher. The
// construction is an involution: calling it a second time with the same
// arguments on the ciphertext recovers the plaintext.
//
// A_i = 0x01 | 0x00 0x00 0x00 0x00 | dir | DevAddr(LE) | FCnt32(LE) | 0x00 | i
func CryptPayload(key [KeySize]byte, dir byte, devAddr uint32, fcnt uint32, data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)

	c, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "crypto: new cipher")
	}

	a := make([]byte, BlockSize)
	s := make([]byte, BlockSize)
	a[0] = 0x01
	a[5] = dir
	binary.LittleEndian.PutUint32(a[6:10], devAddr)
	binary.LittleEndian.PutUint32(a[10:14], fcnt)

	nBlocks := (len(out) + BlockSize - 1) / BlockSize
	for i := 0; i < nBlocks; i++ {
		a[15] = byte(i + 1)
		c.Encrypt(s, a)

		offset := i * BlockSize
		end := offset + BlockSize
		if end > len(out) {
			end = len(out)
		}
		for j := offset; j < end; j++ {
			out[j] ^= s[j-offset]
		}
	}

	return out, nil
}

// DeriveNwkSKey derives the network session key on OTAA join-accept, per
// §4.1: NwkSKey = AES128(AppKey, 0x01 | AppNonce | NetID | DevNonce | pad16).
func DeriveNwkSKey(appKey [KeySize]byte, appNonce [3]byte, netID [3]byte, devNonce uint16) ([KeySize]byte, error) {
	return deriveSessionKey(appKey, 0x01, appNonce, netID, devNonce)
}

// DeriveAppSKey derives the application session key on OTAA join-accept,
// per §4.1: AppSKey = AES128(AppKey, 0x02 | AppNonce | NetID | DevNonce | pad16).
func DeriveAppSKey(appKey [KeySize]byte, appNonce [3]byte, netID [3]byte, devNonce uint16) ([KeySize]byte, error) {
	return deriveSessionKey(appKey, 0x02, appNonce, netID, devNonce)
}

func deriveSessionKey(appKey [KeySize]byte, typeByte byte, appNonce [3]byte, netID [3]byte, devNonce uint16) ([KeySize]byte, error) {
	var out [KeySize]byte

	block := make([]byte, BlockSize)
	block[0] = typeByte
	copy(block[1:4], appNonce[:])
	copy(block[4:7], netID[:])
	binary.LittleEndian.PutUint16(block[7:9], devNonce)
	// block[9:16] remains zero padding

	enc, err := EncryptBlock(appKey, block)
	if err != nil {
		return out, errors.Wrap(err, "crypto: derive session key")
	}
	copy(out[:], enc)
	return out, nil
}
