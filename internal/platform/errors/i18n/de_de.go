package i18n

var deDEMessages = map[Code]string{
	CodeNotFound:          "Das angeforderte Objekt ({{.Kind}}) existiert nicht.",
	CodeRetriableConflict: "Eine andere Änderung betraf dieselben Bereiche. Bitte erneut versuchen.",

	CodeRealmInvalidSegment:                                  "Das Pfadsegment ist ungültig.",
	CodeRealmInvalidSegment + "/too-short":                   "Pfadsegmente müssen mindestens zwei Zeichen lang sein.",
	CodeRealmInvalidSegment + "/control-char":                "Pfadsegmente dürfen keine Steuerzeichen enthalten.",
	CodeRealmInvalidSegment + "/whitespace":                  "Pfadsegmente dürfen keine Leerzeichen enthalten.",
	CodeRealmInvalidSegment + "/illegal-chars":               "Pfadsegmente dürfen keines dieser Zeichen enthalten: < > \" [ \\ ] ^ ` { | } # % / ?",
	CodeRealmInvalidSegment + "/reserved-chars-at-beginning": "Pfadsegmente dürfen nicht mit einem dieser Zeichen beginnen: - + ~ @ _ ! $ & ; : . , = * ' ( )",

	CodeRealmNoSuchParent:          "Der übergeordnete Bereich existiert nicht.",
	CodeRealmCyclicMove:            "Ein Bereich kann nicht unter sich selbst verschoben werden.",
	CodeRealmRootImmutable:         "Der Wurzelbereich kann nicht gelöscht oder umbenannt werden.",
	CodeRealmDerivedFieldViolation: "Der vollständige Pfad eines Bereichs wird abgeleitet und kann nicht direkt gesetzt werden.",
	CodeRealmUniqueConflict:        "Die Bereichspfade sind inkonsistent. Bitte einen Administrator kontaktieren.",
	CodeRealmPathTaken:             "Ein Bereich mit dem Pfad {{.Path}} existiert bereits.",
	CodeRealmInvalidName:           "Bereichsnamen dürfen nicht leer sein.",
	CodeRealmInvalidOrder:          "Die gewünschte Sortierung ist ungültig.",
	CodeRealmNameSourceConflict:    "Ein Bereich erhält seinen Namen entweder aus Text oder aus einem Block, nicht beidem.",
	CodeRealmNameBlockOutsideRealm: "Der Namensblock muss zum Bereich selbst gehören.",
	CodeRealmNameBlockUntitled:     "Nur Video- und Serienblöcke können einen Bereich benennen.",
	CodeContentInvalidReference:    "Blöcke müssen genau ein existierendes Video oder eine Serie referenzieren.",
	CodeContentTitleEmpty:          "Titel dürfen nicht leer sein.",
	CodeQueueInvalidLimit:          "Das Leselimit der Warteschlange muss größer als null sein.",
}
