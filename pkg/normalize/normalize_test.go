package normalize

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/diary-pilot/pkg/diary"
)

var day = diary.Day(civil.Date{Year: 2021, Month: time.November, Day: 9})

func stuff(t diary.Type, title string) diary.Stuff {
	return diary.NewStuff(t, title, "")
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name    string
		summary string
		body    string
		want    []diary.Stuff
	}{
		{"simple", "DID something\n", "\n", []diary.Stuff{stuff(diary.Did, "something")}},
		{"no newline at end", "DID something", "\n", []diary.Stuff{stuff(diary.Did, "something")}},
		{"trailing whitespace", "DID something\n \t\n \n\n", "\n", []diary.Stuff{stuff(diary.Did, "something")}},
		{"whitespace between lines", "DID thing 1\n \t\nDID thing 2\n", "", []diary.Stuff{
			stuff(diary.Did, "thing 1"),
			stuff(diary.Did, "thing 2"),
		}},
		{"whitespace inside body", "DID thing:\n--\npart 1\n \t\npart 2\n--\n", "", []diary.Stuff{
			diary.NewStuff(diary.Did, "thing", "part 1\npart 2"),
		}},
		{"whitespace around body syntax", "DID thing: \n--\nbody 1\t\nbody 2\n-- \n", "", []diary.Stuff{
			diary.NewStuff(diary.Did, "thing", "body 1\nbody 2"),
		}},
		{"leading event", "event\nDID action 1\nDID action 2\n", "", []diary.Stuff{
			stuff(diary.Event, "event"),
			stuff(diary.Did, "action 1"),
			stuff(diary.Did, "action 2"),
		}},
		{"just an event", "some stuff here", "\n", []diary.Stuff{stuff(diary.Event, "some stuff here")}},
		{"missed caps", "An event\nDId something\nCANCELLEd something else\nDIdN't do another thing\n", "", []diary.Stuff{
			stuff(diary.Event, "An event"),
			stuff(diary.Did, "something"),
			stuff(diary.Cancelled, "something else"),
			stuff(diary.Didnt, "do another thing"),
		}},
		{"bracketed last line", "DID something\n(An event)\n \n\n", "", []diary.Stuff{
			stuff(diary.Did, "something"),
			stuff(diary.Event, "(An event)"),
		}},
		{"last line event", "DID something\n\nAn event\n \n\n", "", []diary.Stuff{
			stuff(diary.Did, "something"),
			stuff(diary.Event, "An event"),
		}},
		{"first line miscapitalised keyword", "DIdn't do something", "", []diary.Stuff{
			stuff(diary.Event, "DIDN'T do something"),
		}},
		{"lower case didn't", "didn't finish task", "", []diary.Stuff{stuff(diary.Event, "DIDN'T finish task")}},
		{"lower case didn't later on", "DID one\ndidn't finish task", "", []diary.Stuff{
			stuff(diary.Did, "one"),
			stuff(diary.Didnt, "finish task"),
		}},
		{"gave up", "GAVE UP on the project", "", []diary.Stuff{stuff(diary.Cancelled, "the project")}},
		{"unknown upper case word", "INVALID_TYPE Something", "", []diary.Stuff{stuff(diary.Event, "INVALID_TYPE Something")}},
		{"free form lines", "Went to the shop\nMet Bob\nTired", "", []diary.Stuff{
			stuff(diary.Event, "Went to the shop"),
			stuff(diary.Event, "Met Bob"),
			stuff(diary.Event, "Tired"),
		}},
		{"colon and smiley", "EVENT: SOMEWHERE :-):\n--\nsome stuff\n--", "", []diary.Stuff{
			diary.NewStuff(diary.Event, "SOMEWHERE :-)", "some stuff"),
		}},
		{"tags and synonyms", "DID:work:late stayed\nCANCELED party", "", []diary.Stuff{
			diary.NewStuff(diary.Did, "stayed", "", "work", "late"),
			stuff(diary.Cancelled, "party"),
		}},
		{"body note", "DID something", "long story\nshort", []diary.Stuff{
			stuff(diary.Did, "something"),
			diary.NewStuff(diary.Note, BodyNoteTitle, "long story\nshort"),
		}},
		{"body dash ignored", "DID something", " - ", []diary.Stuff{stuff(diary.Did, "something")}},
		{"body already attached", "DID thing:\n--\nsame\n--", "same\n", []diary.Stuff{
			diary.NewStuff(diary.Did, "thing", "same"),
		}},
		{"body only", " \n", "just a body", []diary.Stuff{
			diary.NewStuff(diary.Note, BodyNoteTitle, "just a body"),
		}},
		{"nothing", " \n\t\n", "\n", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(day, tc.summary, tc.body)
			require.NoError(t, err)
			assert.Equal(t, day.Start, got.Start)
			if diff := cmp.Diff(tc.want, got.Stuff, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("stuff mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeKeepsLinkage(t *testing.T) {
	p := day
	p.RemoteID = "123"
	p.StartURL = "http://archive/listing"
	got, err := Normalize(p, "DID x", "")
	require.NoError(t, err)
	assert.Equal(t, "123", got.RemoteID)
	assert.Equal(t, "http://archive/listing", got.StartURL)
}

func TestNormalizeError(t *testing.T) {
	_, err := Normalize(day, "DID thing:\n--\nnever closed", "")
	var nerr *Error
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, 4, nerr.Cause.Line)
	assert.Equal(t, "body is never closed\n--\n^", err.Error())

	var perr *diary.ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestCorrect(t *testing.T) {
	assert.Equal(t, "", Correct("\n \n"))
	assert.Equal(t, "EVENT An event\nDID something", Correct("An event\n\n  \nDId something  "))
	assert.Equal(t, "DID x:\n--\nkept as is\n--", Correct("DID x:\n--\nkept as is\n--"))
}
