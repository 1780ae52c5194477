package core

import (
	"fmt"
	"strings"
)

// Subject is one of the school subjects taught at the liceo.
type Subject string

const (
	LenguaLiteratura   Subject = "Lengua y Literatura"
	Matematica         Subject = "Matemática"
	Ciencias           Subject = "Ciencias"
	CienciasCiudadania Subject = "Ciencias para la ciudadanía"
	Historia           Subject = "Historia"
	EducacionCiudadana Subject = "Educación Ciudadana"
	Filosofia          Subject = "Filosofía"
	Ingles             Subject = "Inglés"
	PensamientoLogico  Subject = "Pensamiento Lógico"
	CompetenciaLectora Subject = "Competencia Lectora"
	Artes              Subject = "Artes"
	Musica             Subject = "Música"
	EducacionFisica    Subject = "Educación Física"
	Emprendimiento     Subject = "Emprendimiento"
	MecanicaAutomotriz Subject = "Mecánica Automotriz"
	MecanicaIndustrial Subject = "Mecánica Industrial"
	Tecnologia         Subject = "Tecnología"
)

var allSubjects = []Subject{
	LenguaLiteratura,
	Matematica,
	Ciencias,
	CienciasCiudadania,
	Historia,
	EducacionCiudadana,
	Filosofia,
	Ingles,
	PensamientoLogico,
	CompetenciaLectora,
	Artes,
	Musica,
	EducacionFisica,
	Emprendimiento,
	MecanicaAutomotriz,
	MecanicaIndustrial,
	Tecnologia,
}

// AllSubjects returns the subjects in display order.
func AllSubjects() []Subject {
	return append([]Subject(nil), allSubjects...)
}

func (s Subject) String() string {
	return string(s)
}

func (s Subject) IsValid() bool {
	for _, v := range allSubjects {
		if s == v {
			return true
		}
	}
	return false
}

// ParseSubject matches a label exactly after trimming surrounding space.
func ParseSubject(s string) (Subject, error) {
	sub := Subject(strings.TrimSpace(s))
	if !sub.IsValid() {
		return "", fmt.Errorf("%w %q", ErrInvalidSubject, s)
	}
	return sub, nil
}
