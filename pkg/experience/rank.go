package experience

// rankStep is one rung of the XP ladder: the minimum XP and its title.
type rankStep struct {
	minXP int
	title string
}

// The ladder is ordered ascending; a reviewer holds the highest rung whose
// minimum they reached.
var ranks = []rankStep{
	{0, "Novato"},
	{101, "Aprendiz"},
	{201, "Iniciante"},
	{301, "Recruta"},
	{401, "Principiante"},
	{601, "Observador"},
	{801, "Vigia"},
	{1001, "Aspirante"},
	{1301, "Cadete"},
	{1601, "Sentinela"},
	{2001, "Patrulheiro"},
	{2601, "Agente"},
	{3201, "Defensor"},
	{3801, "Escudeiro"},
	{4601, "Experiente"},
	{5501, "Protetor"},
	{6501, "Guardião Júnior"},
	{7801, "Cavaleiro"},
	{9001, "Profissional"},
	{10501, "Vanguarda"},
	{12001, "Veterano"},
	{14501, "Elite"},
	{17001, "Mestre de Campo"},
	{20001, "Estrategista"},
	{23501, "Guardião Mestre"},
	{27001, "Comandante"},
	{31001, "Chefe de Patrulha"},
	{35501, "Protetor Supremo"},
	{40001, "General da Guarda"},
	{45501, "Guardião de Ferro"},
	{51001, "Guardião de Aço"},
	{57501, "Guardião Lendário"},
	{64001, "Guardião Épico"},
	{71001, "Guardião Real"},
	{78501, "Guardião Ancião"},
	{86001, "Guardião Supremo"},
	{94001, "Guardião Sagrado"},
	{102001, "Guardião Imortal"},
	{110001, "Guardião Celestial"},
	{118001, "Guardião das Sombras"},
	{126001, "Guardião da Luz"},
	{134501, "Guardião Cósmico"},
	{143001, "Guardião Estelar"},
	{152001, "Guardião Dimensional"},
	{161501, "Guardião Supremo de Elite"},
	{171001, "Guardião da Eternidade"},
	{181001, "Guardião Infinito"},
	{191001, "Guardião Divino"},
	{200001, "Guardião Absoluto"},
	{225001, "Guardião Eterno"},
}

// Rank returns the title held at the given XP.
func Rank(xp int) string {
	current := ranks[0].title
	for _, step := range ranks {
		if xp >= step.minXP {
			current = step.title
		} else {
			break
		}
	}
	return current
}

// Progress returns the XP gathered inside the current rung, the XP needed
// to reach the next rung, and the completion ratio. At the top rung the
// needed amount is 0 and the ratio is 1.
func Progress(xp int) (current int, needed int, ratio float64) {
	idx := 0
	for i, step := range ranks {
		if xp >= step.minXP {
			idx = i
		} else {
			break
		}
	}

	base := ranks[idx].minXP
	if idx == len(ranks)-1 {
		return xp - base, 0, 1
	}

	next := ranks[idx+1].minXP
	current = xp - base
	needed = next - base
	if needed > 0 {
		ratio = float64(current) / float64(needed)
	}
	return current, needed, ratio
}
