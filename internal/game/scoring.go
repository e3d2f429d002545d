package game

// Score compara palpite e segredo de mesmo tamanho.
// positions conta índices iguais; numbers é o tamanho da interseção dos
// multiconjuntos (cada dígito conta no máximo min(palpite, segredo) vezes).
// Tamanhos diferentes dão (0, 0); dígitos fora de [0,9] não contam.
func Score(secret, guess []int) (positions, numbers int) {
	if len(secret) != len(guess) {
		return 0, 0
	}
	var inSecret, inGuess [10]int
	for i := range secret {
		s, g := secret[i], guess[i]
		sOK, gOK := s >= 0 && s <= 9, g >= 0 && g <= 9
		if sOK && s == g {
			positions++
		}
		if sOK {
			inSecret[s]++
		}
		if gOK {
			inGuess[g]++
		}
	}
	for d := range inSecret {
		numbers += min(inSecret[d], inGuess[d])
	}
	return positions, numbers
}

// validGuess exige tamanho n e dígitos em [0,9]; repetição é permitida.
func validGuess(guess []int, n int) bool {
	if len(guess) != n {
		return false
	}
	for _, d := range guess {
		if d < 0 || d > 9 {
			return false
		}
	}
	return true
}
