package production

import "fmt"

// batchNumber builds the human-readable batch identifier, e.g. PB-20260115-0003.
// The sequence restarts every day and is unique per day by a database
// constraint, so the full number is unique by construction.
func batchNumber(batchDate string, seq int) string {
	return fmt.Sprintf("PB-%s-%04d", batchDate, seq)
}

// bagSerial builds the per-unit serial number, e.g. FML-202601150003-012.
// prefix identifies the facility; batchDate+seq identify the batch; unitIndex
// runs over every bag of the batch, so no two bags anywhere share a serial.
func bagSerial(prefix, batchDate string, seq, unitIndex int) string {
	return fmt.Sprintf("%s-%s%04d-%03d", prefix, batchDate, seq, unitIndex)
}
