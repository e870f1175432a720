package randutil

import rand "math/rand/v2"

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// Source é a estratégia de sorteio usada na seleção de competidores.
// *rand.Rand satisfaz a interface; em produção usamos o gerador global.
type Source interface {
	IntN(n int) int
}

type global struct{}

func (global) IntN(n int) int { return rand.IntN(n) }

// Default devolve o gerador global, seguro para uso concorrente
func Default() Source { return global{} }

// New devolve um *rand.Rand com semente determinística, para testes reproduzíveis.
// Não é seguro para uso concorrente.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// Shuffle embaralha ids com Fisher–Yates sem alterar a fatia original
func Shuffle(src Source, ids []string) []string {
	out := append([]string(nil), ids...)
	for i := len(out) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
