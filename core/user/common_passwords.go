package user

// commonPasswords is a short list of the most used passwords, matched
// case-insensitively by the password policy. Sorted at init by InitValidators.
var commonPasswords = []string{
	"123456", "123456789", "12345678", "1234567", "password", "password1",
	"passw0rd", "qwerty", "qwerty123", "abc123", "iloveyou", "admin",
	"welcome", "welcome1", "monkey", "dragon", "letmein", "football",
	"baseball", "sunshine", "princess", "superman", "batman", "shadow",
	"master", "michael", "jordan", "harley", "ranger", "hunter",
	"trustno1", "whatever", "freedom", "starwars", "computer", "internet",
	"secret", "summer", "flower", "hello123", "charlie", "aa123456",
	"donald", "loveme", "zaq12wsx", "qazwsx", "121212", "654321",
	"696969", "112233", "123123", "000000", "1q2w3e4r", "1qaz2wsx",
	"login", "access", "mustang", "maggie", "pepper", "buster",
	"soccer", "hockey", "killer", "george", "sergey", "andrew",
	"nigeria", "lagos123", "student", "logbook",
}
