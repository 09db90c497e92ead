package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/shule/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	usrRepo user.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  addsuper -email EMAIL [-firstname NAME] [-lastname NAME] - add or update a super admin")
	fmt.Println("  migrate COMMAND [ARGS...] - run a database migration command (up, down, status, ...)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addSuperCmd := flag.NewFlagSet("addsuper", flag.ExitOnError)
	addSuperEmail := addSuperCmd.String("email", "", "The admin's email. The password will be prompted next.")
	addSuperFName := addSuperCmd.String("firstname", "", "The admin's first name.")
	addSuperLName := addSuperCmd.String("lastname", "", "The admin's last name.")

	switch args[1] {
	case "addsuper":
		if err := addSuperCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addSuperEmail == "" {
			addSuperCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addSuperCmd.Usage()
			return errHelp
		}
		return cli.addSuper(*addSuperEmail, *addSuperFName, *addSuperLName, string(pwd))
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}
