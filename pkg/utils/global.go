package utils

//ConfidenceThreshold is the detection confidence at or below which a detection is treated as noise
const ConfidenceThreshold = 0.30

//DefaultFrameHeight is the frame height used to place the boundary when the source frame size could not be read
const DefaultFrameHeight = 480

//DefaultCartID is the cart all crossings are recorded against
const DefaultCartID = 1

//DefaultLabels is the ordered product table the detector was trained on, indexed by class id
var DefaultLabels = Labels{
	"Al abd Cookies", "Big Ships", "Biskrem", "California Garden Beans",
	"Fine", "Freska", "Hohos", "Lifebuoy", "Maxtella", "Milk",
	"Nescafe Gold", "PLYMS Tuna", "Pantene Oil Replacement",
	"RedBull", "Rhodes Cheese", "Shampoo Herbal Essences",
	"Supermi indomie", "Toffifee", "V Cola", "Zabado",
	"bless conditioner", "cadbury dairy milk chocolate",
	"herbal essences conditioner", "juhayna mix chocolate",
	"nivea men deodorant", "oreo original", "pepsi",
	"pyrosol", "suntop", "tiger chilli and lemon",
}
