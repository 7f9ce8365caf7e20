// internal/dex/paper/tx.go
package paper

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/wallet"
)

var (
	// ProgramID - AMM программа, в которую выпускаются токены (PumpSwap)
	ProgramID = solana.MustPublicKeyFromBase58("pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA")
	// CurveProgramID - программа bonding curve
	CurveProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

	createPoolDiscriminator = []byte{0xe9, 0x92, 0xd1, 0x8e, 0xcf, 0x68, 0x40, 0xbc}
	buyDiscriminator        = []byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}
	sellDiscriminator       = []byte{0x33, 0xe6, 0x85, 0xa4, 0x01, 0x7f, 0x83, 0xad}
)

// DerivePoolAddress вычисляет PDA пула для пары mint/WSOL.
func DerivePoolAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("pool"), mint.Bytes(), solana.SolMint.Bytes()},
		ProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive pool address: %w", err)
	}
	return addr, nil
}

// DeriveBondingCurveAddress вычисляет PDA bonding curve токена.
func DeriveBondingCurveAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("bonding-curve"), mint.Bytes()},
		CurveProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive bonding curve address: %w", err)
	}
	return addr, nil
}

// instructionData serializes discriminator + two little-endian u64 arguments.
func instructionData(discriminator []byte, a, b uint64) []byte {
	data := make([]byte, 0, len(discriminator)+16)
	data = append(data, discriminator...)
	data = binary.LittleEndian.AppendUint64(data, a)
	data = binary.LittleEndian.AppendUint64(data, b)
	return data
}

// signOffline собирает и подписывает транзакцию без отправки в сеть.
// Blockhash выводится из seed, поэтому одинаковый seed дает одинаковую подпись.
func signOffline(payer *wallet.Wallet, seed []byte, ixs ...solana.Instruction) (solana.Signature, error) {
	tx, err := payer.Sign(solana.Hash(sha256.Sum256(seed)), ixs...)
	if err != nil {
		return solana.Signature{}, err
	}
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, fmt.Errorf("transaction produced no signatures")
	}
	return tx.Signatures[0], nil
}
