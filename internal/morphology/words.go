package morphology

func table(pos PartOfSpeech, words ...string) map[string]PartOfSpeech {
	out := make(map[string]PartOfSpeech, len(words))
	for _, w := range words {
		out[w] = pos
	}
	return out
}

func merge(tables ...map[string]PartOfSpeech) map[string]PartOfSpeech {
	out := make(map[string]PartOfSpeech)
	for _, t := range tables {
		for w, pos := range t {
			if _, exists := out[w]; !exists {
				out[w] = pos
			}
		}
	}
	return out
}

var englishFunctionWords = merge(
	table(Article, "the", "an"),
	table(Conjunction,
		"and", "or", "but", "nor", "yet", "so", "because", "although", "though",
		"while", "if", "unless", "whether", "than", "whereas", "either", "neither", "both",
	),
	table(Preposition,
		"about", "above", "across", "after", "against", "along", "among", "around", "at",
		"before", "behind", "below", "beneath", "beside", "between", "beyond", "by",
		"down", "during", "except", "for", "from", "in", "inside", "into", "near", "of",
		"off", "on", "onto", "out", "outside", "over", "past", "since", "through",
		"throughout", "to", "toward", "towards", "under", "underneath", "until", "up",
		"upon", "via", "with", "within", "without",
	),
	table(Particle, "not", "no"),
	table(Pronoun,
		"me", "my", "mine", "myself", "you", "your", "yours", "yourself", "yourselves",
		"he", "him", "his", "himself", "she", "her", "hers", "herself", "it", "its",
		"itself", "we", "us", "our", "ours", "ourselves", "they", "them", "their",
		"theirs", "themselves", "this", "that", "these", "those", "who", "whom", "whose",
		"which", "what", "anyone", "anything", "everyone", "everything", "someone",
		"something", "nobody", "nothing",
	),
	table(Interjection,
		"oh", "ah", "wow", "hey", "hi", "hello", "oops", "ouch", "alas", "hmm", "hurray", "ugh",
	),
)

var russianFunctionWords = merge(
	table(Conjunction,
		"и", "а", "но", "или", "да", "что", "чтобы", "если", "как", "когда", "потому",
		"хотя", "либо", "тоже", "также", "зато", "однако", "ни", "будто", "словно",
	),
	table(Preposition,
		"в", "во", "на", "с", "со", "к", "ко", "по", "о", "об", "обо", "от", "из", "у",
		"за", "над", "под", "при", "про", "для", "без", "до", "через", "между", "перед",
		"около", "вокруг", "после", "среди", "ради", "сквозь", "вдоль", "кроме",
	),
	table(Particle,
		"не", "же", "ли", "бы", "вот", "даже", "уже", "только", "лишь", "ведь", "разве",
		"неужели", "пусть", "именно",
	),
	table(Pronoun,
		"я", "ты", "он", "она", "оно", "мы", "вы", "они", "меня", "тебя", "его", "ее",
		"нас", "вас", "их", "мне", "тебе", "ему", "ей", "нам", "вам", "им", "мной",
		"тобой", "ним", "ней", "ними", "них", "себя", "себе", "собой", "мой", "моя",
		"мое", "мои", "твой", "твоя", "твои", "свой", "своя", "свои", "наш", "наша",
		"наши", "ваш", "ваша", "ваши", "этот", "эта", "это", "эти", "тот", "та", "то",
		"те", "кто", "какой", "который", "которая", "которые", "чей", "весь", "вся",
		"все", "сам", "сама",
	),
	table(Interjection, "ах", "ох", "ой", "эх", "увы", "ура", "ага", "угу", "эй", "ну"),
)
