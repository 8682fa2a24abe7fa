// Command posctl is the operator CLI for a PopUp POS deployment. It talks to
// the same backend and database the API server uses.
package main

func main() {
	Execute()
}
