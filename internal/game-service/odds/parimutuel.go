// Package odds implementa o cálculo pari-mutuel das cotações.
//
// As cotações são derivadas apenas do pool corrente: coeficiente = pool total /
// valor apostado no competidor, truncado em 2 casas e com piso de 1.01. Competidor
// sem apostas tem cotação 0. Toda a aritmética é feita em centésimos inteiros para
// que o truncamento seja exato.
package odds

import "github.com/shopspring/decimal"

// MinCoefficient em centésimos (1.01)
const minHundredths = 101

// Result é o snapshot derivado do pool
type Result struct {
	Odds      map[string]float64 `json:"odds"`
	TotalPool int64              `json:"totalPool"`
}

// Calculate deriva o coeficiente de cada competidor do pool informado
func Calculate(pool map[string]int64) Result {
	var total int64
	for _, staked := range pool {
		if staked > 0 {
			total += staked
		}
	}

	res := Result{Odds: make(map[string]float64, len(pool)), TotalPool: total}
	for id, staked := range pool {
		res.Odds[id] = toCoefficient(hundredths(total, staked))
	}
	return res
}

// AfterBet calcula as cotações como se amount fosse somado ao competidor.
// O mapa recebido não é alterado.
func AfterBet(pool map[string]int64, contestantID string, amount int64) Result {
	next := make(map[string]int64, len(pool)+1)
	for id, v := range pool {
		next[id] = v
	}
	next[contestantID] += amount
	return Calculate(next)
}

// PotentialPayout é floor(stake × coefficient), ou 0 para cotação não positiva.
// O coeficiente é lido pela menor representação decimal do float (3.03 e não
// 3.0299...), e o produto é exato.
func PotentialPayout(stake int64, coefficient float64) int64 {
	if coefficient <= 0 || stake <= 0 {
		return 0
	}
	return decimal.NewFromInt(stake).Mul(decimal.NewFromFloat(coefficient)).Floor().IntPart()
}

// VolunteerReward é o prêmio do competidor vencedor sobre o valor travado
func VolunteerReward(locked, multiplier int64) int64 {
	if locked <= 0 || multiplier <= 0 {
		return 0
	}
	return locked * multiplier
}

func hundredths(total, staked int64) int64 {
	if staked <= 0 || total <= 0 {
		return 0
	}
	h := total * 100 / staked
	if h < minHundredths {
		return minHundredths
	}
	return h
}

func toCoefficient(h int64) float64 {
	return float64(h) / 100
}
